// internal/domain/geo/entity.go
package geo

// Province is one administrative province within a region.
type Province struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Region groups provinces. The upstream static document nests provinces
// under their region.
type Region struct {
	Name      string     `json:"name"`
	Provinces []Province `json:"provinces"`
}

// Dataset is the full region→provinces reference dataset.
type Dataset struct {
	Regions []Region `json:"regions"`
}
