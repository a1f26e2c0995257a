package volume

import "github.com/go-gl/mathgl/mgl32"

// Voxel words are RGBA8 with opacity in the top byte, so an unsigned atomic
// max prefers the more opaque contribution and then orders by color. The merge
// is commutative, which keeps level 0 bit-identical across rebuilds regardless
// of invocation order.

func Pack(c mgl32.Vec4) uint32 {
	return uint32(unorm8(c[3]))<<24 |
		uint32(unorm8(c[0]))<<16 |
		uint32(unorm8(c[1]))<<8 |
		uint32(unorm8(c[2]))
}

func Unpack(v uint32) mgl32.Vec4 {
	return mgl32.Vec4{
		float32((v>>16)&0xFF) / 255,
		float32((v>>8)&0xFF) / 255,
		float32(v&0xFF) / 255,
		float32(v>>24) / 255,
	}
}

func Opacity(v uint32) uint32 {
	return v >> 24
}

func IsEmpty(v uint32) bool {
	return v>>24 == 0
}

func unorm8(f float32) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f*255 + 0.5)
}

// Downsample merges eight child words into their parent. Opacity is the
// rounded-up mean so a single occupied child never vanishes at coarse levels;
// color is the opacity-weighted mean. Integer only, hence order independent.
func Downsample(children [8]uint32) uint32 {
	var sumA, sumR, sumG, sumB uint32
	for _, c := range children {
		a := c >> 24
		if a == 0 {
			continue
		}
		sumA += a
		sumR += a * ((c >> 16) & 0xFF)
		sumG += a * ((c >> 8) & 0xFF)
		sumB += a * (c & 0xFF)
	}
	if sumA == 0 {
		return 0
	}
	a := (sumA + 7) / 8
	r := (sumR + sumA/2) / sumA
	g := (sumG + sumA/2) / sumA
	b := (sumB + sumA/2) / sumA
	return a<<24 | r<<16 | g<<8 | b
}
