package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
)

// SeedFile is the TOML layout of a catalog seed:
//
//	[[products]]
//	gtin = "61640056789012"
//	name = "Amoxicillin 500mg"
//	code = "AMX500"
type SeedFile struct {
	Products []SeedProduct `toml:"products"`
}

type SeedProduct struct {
	GTIN string `toml:"gtin"`
	Name string `toml:"name"`
	Code string `toml:"code"`
}

// DecodeSeed parses a TOML seed document.
func DecodeSeed(r io.Reader) ([]ports.ProductRef, error) {
	var file SeedFile
	dec := toml.NewDecoder(r).DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, errs.Wrap(err, "decode catalog seed")
	}

	out := make([]ports.ProductRef, 0, len(file.Products))
	for i, p := range file.Products {
		if p.GTIN == "" || p.Name == "" {
			return nil, fmt.Errorf("%w: products[%d] needs gtin and name", errs.ErrValidation, i)
		}
		out = append(out, ports.ProductRef{GTIN: p.GTIN, Name: p.Name, Code: p.Code})
	}
	return out, nil
}

// SeedFromFile loads a TOML seed file into store.
func SeedFromFile(ctx context.Context, store ports.ProductStore, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errs.Wrapf(err, "open catalog seed %q", path)
	}
	defer f.Close()

	products, err := DecodeSeed(f)
	if err != nil {
		return 0, err
	}
	return store.UpsertProducts(ctx, products)
}
