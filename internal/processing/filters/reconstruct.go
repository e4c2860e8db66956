package filters

import "fmt"

// ReconstructByDilation performs grayscale morphological reconstruction of
// marker under mask with 8-connectivity, in place: marker is repeatedly
// dilated and clipped to mask until it stops changing. Marker values above
// the mask are clipped first.
//
// The implementation is the hybrid raster/queue algorithm: one forward and
// one backward raster sweep, then FIFO propagation from the pixels that can
// still grow.
func ReconstructByDilation(marker, mask []float32, rows, cols int) error {
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("invalid dimensions: %dx%d", cols, rows)
	}
	if len(marker) != rows*cols || len(mask) != rows*cols {
		return fmt.Errorf("marker (%d) and mask (%d) must both hold %d pixels", len(marker), len(mask), rows*cols)
	}

	for i := range marker {
		marker[i] = min(marker[i], mask[i])
	}

	// forward sweep over the already visited half of the 8-neighbourhood
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			v := marker[i]
			if r > 0 {
				up := i - cols
				if c > 0 {
					v = max(v, marker[up-1])
				}
				v = max(v, marker[up])
				if c < cols-1 {
					v = max(v, marker[up+1])
				}
			}
			if c > 0 {
				v = max(v, marker[i-1])
			}
			marker[i] = min(v, mask[i])
		}
	}

	queue := make([]int, 0, 64)

	// backward sweep; seeds the queue with pixels whose later neighbours can grow
	for r := rows - 1; r >= 0; r-- {
		for c := cols - 1; c >= 0; c-- {
			i := r*cols + c
			v := marker[i]
			if r < rows-1 {
				down := i + cols
				if c < cols-1 {
					v = max(v, marker[down+1])
				}
				v = max(v, marker[down])
				if c > 0 {
					v = max(v, marker[down-1])
				}
			}
			if c < cols-1 {
				v = max(v, marker[i+1])
			}
			v = min(v, mask[i])
			marker[i] = v

			if canGrowBackward(marker, mask, rows, cols, r, c, v) {
				queue = append(queue, i)
			}
		}
	}

	for head := 0; head < len(queue); head++ {
		p := queue[head]
		r, c := p/cols, p%cols
		v := marker[p]

		for dr := -1; dr <= 1; dr++ {
			nr := r + dr
			if nr < 0 || nr >= rows {
				continue
			}
			for dc := -1; dc <= 1; dc++ {
				nc := c + dc
				if (dr == 0 && dc == 0) || nc < 0 || nc >= cols {
					continue
				}
				q := nr*cols + nc
				if marker[q] < v && marker[q] != mask[q] {
					marker[q] = min(v, mask[q])
					queue = append(queue, q)
				}
			}
		}

		if head > 1<<16 && head > len(queue)/2 {
			queue = append(queue[:0], queue[head+1:]...)
			head = -1
		}
	}

	return nil
}

func canGrowBackward(marker, mask []float32, rows, cols, r, c int, v float32) bool {
	check := func(q int) bool {
		return marker[q] < v && marker[q] < mask[q]
	}

	i := r*cols + c
	if c < cols-1 && check(i+1) {
		return true
	}
	if r < rows-1 {
		down := i + cols
		if c > 0 && check(down-1) {
			return true
		}
		if check(down) {
			return true
		}
		if c < cols-1 && check(down+1) {
			return true
		}
	}
	return false
}

// BorderSeed builds the reconstruction marker for background suppression:
// a copy of src whose interior is lowered to the global minimum, leaving
// the one-pixel frame untouched.
func BorderSeed(src []float32, rows, cols int) []float32 {
	seed := make([]float32, len(src))
	copy(seed, src)
	if len(src) == 0 {
		return seed
	}

	lowest := src[0]
	for _, v := range src {
		lowest = min(lowest, v)
	}

	for r := 1; r < rows-1; r++ {
		for c := 1; c < cols-1; c++ {
			seed[r*cols+c] = lowest
		}
	}

	return seed
}
