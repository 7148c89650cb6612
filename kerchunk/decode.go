package kerchunk

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/TuSKan/go-virtualizarr/dataset"
	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/errors"
)

// variableRefs gathers the keys that belong to one array.
type variableRefs struct {
	zarray *manifests.ZArray
	zattrs json.RawMessage
	chunks map[string]json.RawMessage
}

// DatasetFromRefs rebuilds the dataset described by refs. Every failure
// matches ErrInvalidReference; grid violations additionally match
// manifests.ErrMetadataMismatch.
func DatasetFromRefs(refs *Refs, opts ...DecodeOption) (*dataset.Dataset, error) {
	o := newDecodeOptions(opts)
	if refs == nil {
		return nil, invalidf("nil document")
	}
	if refs.Version != Version {
		return nil, invalidf("unsupported version %d", refs.Version)
	}
	if refs.Refs == nil {
		return nil, invalidf("document has no refs")
	}

	ds := dataset.New()
	if raw, ok := refs.Refs[KeyGroup]; ok {
		if err := checkGroup(raw); err != nil {
			return nil, err
		}
	}
	if raw, ok := refs.Refs[KeyAttrs]; ok {
		attrs, err := decodeAttrs(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", KeyAttrs)
		}
		ds.Attrs = attrs
	}

	vars, err := groupVariables(refs)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		v, err := decodeVariable(name, vars[name], o)
		if err != nil {
			return nil, errors.Wrapf(err, "variable %q", name)
		}
		if err := ds.Set(name, v); err != nil {
			return nil, errors.Mark(err, ErrInvalidReference)
		}
	}
	return ds, nil
}

func checkGroup(raw json.RawMessage) error {
	doc, err := metadataDocument(raw)
	if err != nil {
		return errors.Wrapf(err, "%s", KeyGroup)
	}
	var g struct {
		ZarrFormat int `json:"zarr_format"`
	}
	if err := json.Unmarshal(doc, &g); err != nil {
		return invalidf("%s: %v", KeyGroup, err)
	}
	if g.ZarrFormat != manifests.ZarrFormat {
		return invalidf("%s: unsupported zarr_format %d", KeyGroup, g.ZarrFormat)
	}
	return nil
}

// metadataDocument unwraps a metadata value. Writers store metadata as a
// JSON string holding the document; a bare object is accepted as well.
func metadataDocument(raw json.RawMessage) ([]byte, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, invalidf("metadata must be a JSON string or object, got %s", raw)
	}
	return []byte(s), nil
}

func decodeAttrs(raw json.RawMessage) (map[string]any, error) {
	doc, err := metadataDocument(raw)
	if err != nil {
		return nil, err
	}
	var attrs map[string]any
	if err := base.DecodeNumbers(doc, &attrs); err != nil {
		return nil, invalidf("attributes: %v", err)
	}
	return attrs, nil
}

// groupVariables assigns every non-group key to the array whose ".zarray"
// key shares its prefix. Names are matched longest first, so chunk keys
// written with the "/" separator resolve to their array.
func groupVariables(refs *Refs) (map[string]*variableRefs, error) {
	vars := make(map[string]*variableRefs)
	for key, raw := range refs.Refs {
		name, ok := strings.CutSuffix(key, "/"+KeyArray)
		if !ok {
			continue
		}
		doc, err := metadataDocument(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", key)
		}
		z, err := manifests.ParseZArray(doc)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "%s", key), ErrInvalidReference)
		}
		vars[name] = &variableRefs{zarray: z, chunks: map[string]json.RawMessage{}}
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int { return len(b) - len(a) })

	for _, key := range refs.Keys() {
		switch key {
		case KeyGroup, KeyAttrs, KeyConsolidated:
			continue
		}
		if strings.HasSuffix(key, "/"+KeyArray) {
			continue
		}
		name, rest, ok := matchVariable(names, key)
		if !ok {
			if strings.HasSuffix(key, "/"+KeyGroup) || strings.HasSuffix(key, "/"+KeyAttrs) {
				// Metadata of a nested group.
				continue
			}
			return nil, invalidf("key %q does not belong to any array", key)
		}
		v := vars[name]
		switch rest {
		case KeyAttrs:
			v.zattrs = refs.Refs[key]
		case KeyGroup:
			return nil, invalidf("key %q places a group inside an array", key)
		default:
			v.chunks[rest] = refs.Refs[key]
		}
	}
	return vars, nil
}

func matchVariable(names []string, key string) (name, rest string, ok bool) {
	for _, n := range names {
		if r, found := strings.CutPrefix(key, n+"/"); found && r != "" {
			return n, r, true
		}
	}
	return "", "", false
}

func decodeVariable(name string, v *variableRefs, o decodeOptions) (dataset.Variable, error) {
	sep := v.zarray.Separator()
	keys := make([]manifests.ChunkKey, 0, len(v.chunks))
	entries := make([]manifests.ChunkEntry, 0, len(v.chunks))
	chunkNames := make([]string, 0, len(v.chunks))
	for k := range v.chunks {
		chunkNames = append(chunkNames, k)
	}
	slices.Sort(chunkNames)

	for _, k := range chunkNames {
		if sep == "." && strings.Contains(k, "/") || sep == "/" && strings.Contains(k, ".") {
			return dataset.Variable{}, invalidf("chunk key %q does not use separator %q", k, sep)
		}
		key, err := manifests.ParseChunkKey(k)
		if err != nil {
			return dataset.Variable{}, errors.Mark(err, ErrInvalidReference)
		}
		entry, kind, err := decodeChunkRef(v.chunks[k])
		if err != nil {
			return dataset.Variable{}, invalidf("chunk %q: %v", k, err)
		}
		if kind != refTriple {
			if o.inline == InlineSkip {
				o.logger.Infof("kerchunk: skipping %s chunk %s/%s", kindName(kind), name, k)
				continue
			}
			return dataset.Variable{}, invalidf("chunk %q holds %s, which has no byte range", k, kindName(kind))
		}
		keys = append(keys, key)
		entries = append(entries, entry)
	}

	m, err := manifests.NewChunkManifestFromKeys(keys, entries)
	if err != nil {
		return dataset.Variable{}, errors.Mark(err, ErrInvalidReference)
	}
	arr, err := manifests.NewManifestArray(v.zarray, m)
	if err != nil {
		return dataset.Variable{}, errors.Mark(err, ErrInvalidReference)
	}

	dims := dataset.DefaultDims(arr.NDim())
	var attrs map[string]any
	if v.zattrs != nil {
		attrs, err = decodeAttrs(v.zattrs)
		if err != nil {
			return dataset.Variable{}, err
		}
		if raw, ok := attrs[AttrArrayDimensions]; ok {
			dims, err = dimensionNames(raw)
			if err != nil {
				return dataset.Variable{}, err
			}
			delete(attrs, AttrArrayDimensions)
		}
	}
	variable, err := dataset.NewVariable(dims, arr, attrs)
	if err != nil {
		return dataset.Variable{}, errors.Mark(err, ErrInvalidReference)
	}
	return variable, nil
}

func dimensionNames(raw any) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, invalidf("%s must be a list, got %v", AttrArrayDimensions, raw)
	}
	dims := make([]string, len(list))
	for i, d := range list {
		s, ok := d.(string)
		if !ok {
			return nil, invalidf("%s[%d] must be a string, got %v", AttrArrayDimensions, i, d)
		}
		dims[i] = s
	}
	return dims, nil
}

func kindName(k refKind) string {
	switch k {
	case refInline:
		return "inline data"
	case refWholeFile:
		return "a whole-file reference"
	default:
		return "a byte range"
	}
}
