package rendertype

import "math"

// MaxChunkVertices is the largest vertex count a chunk may hold; indices
// are uint16.
const MaxChunkVertices = 1 << 16

// Sizing is the chunk sizing policy of a render type. Vertex sizes count
// records (vertices, or instances for instanced types); index sizes count
// indices.
type Sizing struct {
	MinVertices int
	MaxVertices int // 0 = unbounded
	MinIndices  int
	MaxIndices  int // 0 = unbounded

	VertexGrowth float64
	IndexGrowth  float64
}

// Unique sizes every chunk exactly to the object that opens it.
func Unique() Sizing {
	return Sizing{VertexGrowth: 1, IndexGrowth: 1}
}

// Fixed sizes every chunk to the same minimum.
func Fixed(minVertices, minIndices int) Sizing {
	return Sizing{
		MinVertices:  minVertices,
		MinIndices:   minIndices,
		VertexGrowth: 1,
		IndexGrowth:  1,
	}
}

// Growable sizes the n-th chunk as min*growth^n, clamped to max.
func Growable(minVertices, maxVertices, minIndices, maxIndices int, vertexGrowth, indexGrowth float64) Sizing {
	return Sizing{
		MinVertices:  minVertices,
		MaxVertices:  maxVertices,
		MinIndices:   minIndices,
		MaxIndices:   maxIndices,
		VertexGrowth: vertexGrowth,
		IndexGrowth:  indexGrowth,
	}
}

func (s Sizing) normalized() Sizing {
	if s.MinVertices < 0 {
		s.MinVertices = 0
	}
	if s.MinIndices < 0 {
		s.MinIndices = 0
	}
	if s.MaxVertices != 0 && s.MaxVertices < s.MinVertices {
		s.MaxVertices = s.MinVertices
	}
	if s.MaxIndices != 0 && s.MaxIndices < s.MinIndices {
		s.MaxIndices = s.MinIndices
	}
	if s.VertexGrowth < 1 {
		s.VertexGrowth = 1
	}
	if s.IndexGrowth < 1 {
		s.IndexGrowth = 1
	}
	return s
}

// ChunkVertices returns the vertex capacity of the chunk created when n
// chunks already exist and the opening object needs need vertices.
func (s Sizing) ChunkVertices(n, need int) int {
	return grow(s.MinVertices, s.MaxVertices, s.VertexGrowth, n, need)
}

// ChunkIndices returns the index capacity of the chunk created when n
// chunks already exist and the opening object needs need indices.
func (s Sizing) ChunkIndices(n, need int) int {
	return grow(s.MinIndices, s.MaxIndices, s.IndexGrowth, n, need)
}

func grow(minSize, maxSize int, factor float64, n, need int) int {
	size := float64(minSize) * math.Pow(factor, float64(n))
	if maxSize > 0 && size > float64(maxSize) {
		size = float64(maxSize)
	}
	out := int(math.Ceil(size))
	if out < minSize {
		out = minSize
	}
	if out < need {
		out = need
	}
	return out
}
