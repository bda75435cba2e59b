package audio

// resampler converts interleaved stereo frames between the core's rate
// and the device rate by nearest-neighbor frame selection. The fractional
// read position carries across calls so the ratio holds exactly over a
// session regardless of batch sizes.
type resampler struct {
	ratio float64 // source frames consumed per output frame
	pos   float64
	out   []int16
}

func (r *resampler) setRates(src, dst int) {
	if src <= 0 || dst <= 0 || src == dst {
		r.ratio = 1
	} else {
		r.ratio = float64(src) / float64(dst)
	}
	r.pos = 0
}

// active reports whether conversion is needed at all.
func (r *resampler) active() bool { return r.ratio != 1 && r.ratio != 0 }

// convert returns src resampled to the device rate. The returned slice is
// reused by the next call.
func (r *resampler) convert(src []int16) []int16 {
	frames := len(src) / 2
	r.out = r.out[:0]
	for ; r.pos < float64(frames); r.pos += r.ratio {
		i := int(r.pos) * 2
		r.out = append(r.out, src[i], src[i+1])
	}
	r.pos -= float64(frames)
	return r.out
}
