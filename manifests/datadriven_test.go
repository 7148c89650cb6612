package manifests_test

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

// TestConcatDataDriven exercises key renumbering. Commands:
//
//	define name=<n> shape=(..) chunks=(..) [dtype=<t>]
//	<key> <path> <offset> <length>
//	...
//
//	concat axis=<a> arrays=(<n>, ...) [as=<n>]
//	stack axis=<a> arrays=(<n>, ...) [as=<n>]
func TestConcatDataDriven(t *testing.T) {
	arrays := map[string]*manifests.ManifestArray{}
	datadriven.RunTest(t, "testdata/concat", func(t *testing.T, d *datadriven.TestData) string {
		return runConcatCmd(t, d, arrays)
	})
}

func runConcatCmd(t *testing.T, d *datadriven.TestData, arrays map[string]*manifests.ManifestArray) string {
	switch d.Cmd {
	case "define":
		var name, dtype string
		var shape, chunks []int
		dtype = "<i8"
		for _, arg := range d.CmdArgs {
			switch arg.Key {
			case "name":
				name = arg.Vals[0]
			case "dtype":
				dtype = arg.Vals[0]
			case "shape":
				shape = parseInts(t, arg.Vals)
			case "chunks":
				chunks = parseInts(t, arg.Vals)
			}
		}
		entries := map[string]manifests.ChunkEntry{}
		for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			require.Len(t, fields, 4, "bad entry line %q", line)
			off, err := strconv.ParseInt(fields[2], 10, 64)
			require.NoError(t, err)
			length, err := strconv.ParseInt(fields[3], 10, 64)
			require.NoError(t, err)
			entries[fields[0]] = manifests.ChunkEntry{Path: fields[1], Offset: off, Length: length}
		}
		m, err := manifests.NewChunkManifest(entries)
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		arr, err := manifests.NewManifestArray(&manifests.ZArray{
			Chunks:     chunks,
			Dtype:      manifests.MustParseDtype(dtype),
			Order:      manifests.OrderC,
			Shape:      shape,
			ZarrFormat: manifests.ZarrFormat,
		}, m)
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		arrays[name] = arr
		return ""

	case "concat", "stack":
		var axis int
		var inputs []*manifests.ManifestArray
		as := ""
		for _, arg := range d.CmdArgs {
			switch arg.Key {
			case "axis":
				axis = parseInts(t, arg.Vals)[0]
			case "arrays":
				for _, n := range arg.Vals {
					arr, ok := arrays[n]
					require.True(t, ok, "unknown array %q", n)
					inputs = append(inputs, arr)
				}
			case "as":
				as = arg.Vals[0]
			}
		}
		var out *manifests.ManifestArray
		var err error
		if d.Cmd == "concat" {
			out, err = manifests.Concatenate(inputs, axis)
		} else {
			out, err = manifests.Stack(inputs, axis)
		}
		if err != nil {
			return fmt.Sprintf("error: %v\n", err)
		}
		if as != "" {
			arrays[as] = out
		}
		return formatArray(out)

	default:
		return fmt.Sprintf("unknown command: %s\n", d.Cmd)
	}
}

func parseInts(t *testing.T, vals []string) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		require.NoError(t, err)
		out[i] = n
	}
	return out
}

func formatArray(arr *manifests.ManifestArray) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "shape=%v chunks=%v\n", arr.Shape(), arr.Chunks())
	for k, e := range arr.Manifest().All() {
		fmt.Fprintf(&sb, "%s: %s\n", k, e)
	}
	return sb.String()
}
