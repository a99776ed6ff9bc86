package genome

import "github.com/gabibrouze/evolving-resilience/internal/model"

// Enumerated gene values. The numeric order matches the original design
// catalogue and is part of the persistent format.
type Shape int

const (
	ShapeRectangular Shape = iota
	ShapeLShaped
	ShapeUShaped
)

func (s Shape) String() string {
	switch s {
	case ShapeLShaped:
		return "l-shaped"
	case ShapeUShaped:
		return "u-shaped"
	default:
		return "rectangular"
	}
}

type Material int

const (
	MaterialConcrete Material = iota
	MaterialSteel
	MaterialWood
)

func (m Material) String() string {
	switch m {
	case MaterialSteel:
		return "steel"
	case MaterialWood:
		return "wood"
	default:
		return "concrete"
	}
}

type FrameType int

const (
	FrameMoment FrameType = iota
	FrameBraced
	FrameShearWall
)

func (f FrameType) String() string {
	switch f {
	case FrameBraced:
		return "braced_frame"
	case FrameShearWall:
		return "shear_wall"
	default:
		return "moment_frame"
	}
}

type HVACType int

const (
	HVACCentral HVACType = iota
	HVACDistributed
	HVACHybrid
)

func (h HVACType) String() string {
	switch h {
	case HVACDistributed:
		return "distributed"
	case HVACHybrid:
		return "hybrid"
	default:
		return "central"
	}
}

type LightingType int

const (
	LightingLED LightingType = iota
	LightingFluorescent
	LightingIncandescent
)

func (l LightingType) String() string {
	switch l {
	case LightingFluorescent:
		return "fluorescent"
	case LightingIncandescent:
		return "incandescent"
	default:
		return "led"
	}
}

type PlumbingType int

const (
	PlumbingCentral PlumbingType = iota
	PlumbingDistributed
)

func (p PlumbingType) String() string {
	if p == PlumbingDistributed {
		return "distributed"
	}
	return "central"
}

type FacadeMaterial int

const (
	FacadeGlass FacadeMaterial = iota
	FacadeMetal
	FacadeComposite
)

func (f FacadeMaterial) String() string {
	switch f {
	case FacadeMetal:
		return "metal"
	case FacadeComposite:
		return "composite"
	default:
		return "glass"
	}
}

// BuildingDesign is the decoded semantic form of a genome, consumed by the
// objective evaluators and external collaborators.
type BuildingDesign struct {
	Envelope  Envelope  `json:"envelope"`
	Structure Structure `json:"structure"`
	Floors    Floors    `json:"floors"`
	MEP       MEP       `json:"mep"`
	Facade    Facade    `json:"facade"`
}

type Envelope struct {
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
	Shape  Shape   `json:"shape"`
}

type Structure struct {
	Material Material  `json:"material"`
	Frame    FrameType `json:"frame"`
}

type Floors struct {
	Count  int     `json:"count"`
	Height float64 `json:"height"`
}

type MEP struct {
	HVAC      HVACType     `json:"hvac"`
	Lighting  LightingType `json:"lighting"`
	Plumbing  PlumbingType `json:"plumbing"`
	Renewable bool         `json:"renewable"`
}

type Facade struct {
	WindowRatio float64        `json:"window_ratio"`
	Material    FacadeMaterial `json:"material"`
}

// Decode maps a genome to its building description. It is total: any
// out-of-domain or malformed input is clamped against the gene table first,
// so decoding always succeeds.
func Decode(g model.Genome) BuildingDesign {
	c := Clamp(g).Values
	return BuildingDesign{
		Envelope: Envelope{
			Height: c[GeneHeight],
			Width:  c[GeneWidth],
			Length: c[GeneLength],
			Shape:  Shape(c[GeneShape]),
		},
		Structure: Structure{
			Material: Material(c[GeneMaterial]),
			Frame:    FrameType(c[GeneFrame]),
		},
		Floors: Floors{
			Count:  int(c[GeneFloors]),
			Height: c[GeneFloorHeight],
		},
		MEP: MEP{
			HVAC:      HVACType(c[GeneHVAC]),
			Lighting:  LightingType(c[GeneLighting]),
			Plumbing:  PlumbingType(c[GenePlumbing]),
			Renewable: c[GeneRenewable] >= 1,
		},
		Facade: Facade{
			WindowRatio: c[GeneWindowRatio],
			Material:    FacadeMaterial(c[GeneFacadeMaterial]),
		},
	}
}

// Encode maps a building description back to genome values, clamping every
// field into its gene domain. Used by the external design-exchange adapter.
func Encode(d BuildingDesign, id string) model.Genome {
	values := make([]float64, geneCount)
	values[GeneHeight] = d.Envelope.Height
	values[GeneWidth] = d.Envelope.Width
	values[GeneLength] = d.Envelope.Length
	values[GeneShape] = float64(d.Envelope.Shape)
	values[GeneMaterial] = float64(d.Structure.Material)
	values[GeneFrame] = float64(d.Structure.Frame)
	values[GeneFloors] = float64(d.Floors.Count)
	values[GeneFloorHeight] = d.Floors.Height
	values[GeneHVAC] = float64(d.MEP.HVAC)
	values[GeneLighting] = float64(d.MEP.Lighting)
	values[GenePlumbing] = float64(d.MEP.Plumbing)
	if d.MEP.Renewable {
		values[GeneRenewable] = 1
	}
	values[GeneWindowRatio] = d.Facade.WindowRatio
	values[GeneFacadeMaterial] = float64(d.Facade.Material)
	return Clamp(model.Genome{ID: id, Values: values})
}
