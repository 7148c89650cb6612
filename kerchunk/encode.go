package kerchunk

import (
	"encoding/json"
	"maps"

	"github.com/TuSKan/go-virtualizarr/dataset"
	"github.com/TuSKan/go-virtualizarr/internal/base"
	"github.com/TuSKan/go-virtualizarr/manifests"
	"github.com/cockroachdb/errors"
)

const groupMetadata = `{"zarr_format":2}`

// DatasetToRefs builds the reference document of ds: the group metadata,
// then for every variable its array metadata, its attributes with the
// dimension names, and one reference per chunk.
func DatasetToRefs(ds *dataset.Dataset) (*Refs, error) {
	refs := NewRefs()
	if err := refs.SetString(KeyGroup, groupMetadata); err != nil {
		return nil, err
	}
	if len(ds.Attrs) > 0 {
		attrs, err := base.MarshalCompact(ds.Attrs)
		if err != nil {
			return nil, errors.Wrap(err, "encoding dataset attributes")
		}
		if err := refs.SetString(KeyAttrs, string(attrs)); err != nil {
			return nil, err
		}
	}
	for _, name := range ds.Names() {
		v, err := ds.Get(name)
		if err != nil {
			return nil, err
		}
		if err := addVariable(refs, name, v); err != nil {
			return nil, errors.Wrapf(err, "variable %q", name)
		}
	}
	return refs, nil
}

// VariableToRefs adds the references of a single variable to refs.
func VariableToRefs(refs *Refs, name string, v dataset.Variable) error {
	if refs.Refs == nil {
		refs.Refs = map[string]json.RawMessage{}
	}
	return addVariable(refs, name, v)
}

func addVariable(refs *Refs, name string, v dataset.Variable) error {
	if name == "" {
		return errors.New("variable name is empty")
	}
	z := v.Data.ZArray()
	zarray, err := z.Encode()
	if err != nil {
		return errors.Wrap(err, "encoding array metadata")
	}
	if err := refs.SetString(name+"/"+KeyArray, string(zarray)); err != nil {
		return err
	}

	attrs := make(map[string]any, len(v.Attrs)+1)
	maps.Copy(attrs, v.Attrs)
	dims := v.Dims
	if dims == nil {
		dims = []string{}
	}
	attrs[AttrArrayDimensions] = dims
	zattrs, err := base.MarshalCompact(attrs)
	if err != nil {
		return errors.Wrap(err, "encoding attributes")
	}
	if err := refs.SetString(name+"/"+KeyAttrs, string(zattrs)); err != nil {
		return err
	}

	sep := z.Separator()
	for key, entry := range v.Data.Manifest().All() {
		if err := refs.SetChunk(name+"/"+key.Join(sep), entry); err != nil {
			return err
		}
	}
	return nil
}

// ArrayToRefs builds a document holding a single array under name, with
// default dimension names.
func ArrayToRefs(name string, a *manifests.ManifestArray) (*Refs, error) {
	ds := dataset.New()
	if err := ds.Add(name, dataset.DefaultDims(a.NDim()), a); err != nil {
		return nil, err
	}
	return DatasetToRefs(ds)
}
