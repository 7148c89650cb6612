package zarr

// iterateGrid calls fn for every index of the grid with the given extent, in
// C order. An empty extent yields the single empty index; an extent with a
// zero entry yields nothing. fn must not retain indices.
func iterateGrid(extent []int, fn func(indices []int) error) error {
	if len(extent) == 0 {
		return fn([]int{})
	}
	for _, n := range extent {
		if n == 0 {
			return nil
		}
	}
	indices := make([]int, len(extent))
	for {
		if err := fn(indices); err != nil {
			return err
		}

		i := len(extent) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < extent[i] {
				break
			}
			indices[i] = 0
		}
		if i < 0 {
			return nil
		}
	}
}
