// Package bim exchanges building designs with external modelling tools
// through a small versioned JSON document.
package bim

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
	"github.com/gabibrouze/evolving-resilience/internal/model"
)

// Schema identifies the exchange document format.
const Schema = "building-design/1"

// Document is the exchange envelope. Enumerated fields use their string
// names so the file stays readable outside this tool.
type Document struct {
	Schema    string             `json:"schema"`
	DesignID  string             `json:"design_id,omitempty"`
	Envelope  EnvelopeSection    `json:"envelope"`
	Structure StructureSection   `json:"structure"`
	Floors    FloorsSection      `json:"floors"`
	MEP       MEPSection         `json:"mep"`
	Facade    FacadeSection      `json:"facade"`
	Fitness   map[string]float64 `json:"fitness,omitempty"`
}

type EnvelopeSection struct {
	Height float64 `json:"height_m"`
	Width  float64 `json:"width_m"`
	Length float64 `json:"length_m"`
	Shape  string  `json:"shape"`
}

type StructureSection struct {
	Material string `json:"material"`
	Frame    string `json:"frame"`
}

type FloorsSection struct {
	Count  int     `json:"count"`
	Height float64 `json:"height_m"`
}

type MEPSection struct {
	HVAC      string `json:"hvac"`
	Lighting  string `json:"lighting"`
	Plumbing  string `json:"plumbing"`
	Renewable bool   `json:"renewable"`
}

type FacadeSection struct {
	WindowRatio float64 `json:"window_ratio"`
	Material    string  `json:"material"`
}

// FromDesign builds an exchange document from a decoded design.
func FromDesign(d genome.BuildingDesign, designID string, fitness map[string]float64) Document {
	return Document{
		Schema:   Schema,
		DesignID: designID,
		Envelope: EnvelopeSection{
			Height: d.Envelope.Height,
			Width:  d.Envelope.Width,
			Length: d.Envelope.Length,
			Shape:  d.Envelope.Shape.String(),
		},
		Structure: StructureSection{
			Material: d.Structure.Material.String(),
			Frame:    d.Structure.Frame.String(),
		},
		Floors: FloorsSection{
			Count:  d.Floors.Count,
			Height: d.Floors.Height,
		},
		MEP: MEPSection{
			HVAC:      d.MEP.HVAC.String(),
			Lighting:  d.MEP.Lighting.String(),
			Plumbing:  d.MEP.Plumbing.String(),
			Renewable: d.MEP.Renewable,
		},
		Facade: FacadeSection{
			WindowRatio: d.Facade.WindowRatio,
			Material:    d.Facade.Material.String(),
		},
		Fitness: fitness,
	}
}

// ToGenome validates the document and converts it into a genome. Dimension
// fields outside the gene domains are rejected rather than silently clamped;
// imported files should say what they mean.
func (doc Document) ToGenome(id string) (model.Genome, error) {
	if doc.Schema != Schema {
		return model.Genome{}, fmt.Errorf("unsupported schema: %q (want %q)", doc.Schema, Schema)
	}

	design := genome.BuildingDesign{
		Envelope: genome.Envelope{
			Height: doc.Envelope.Height,
			Width:  doc.Envelope.Width,
			Length: doc.Envelope.Length,
		},
		Floors: genome.Floors{
			Count:  doc.Floors.Count,
			Height: doc.Floors.Height,
		},
		MEP: genome.MEP{
			Renewable: doc.MEP.Renewable,
		},
		Facade: genome.Facade{
			WindowRatio: doc.Facade.WindowRatio,
		},
	}

	var err error
	if design.Envelope.Shape, err = parseShape(doc.Envelope.Shape); err != nil {
		return model.Genome{}, err
	}
	if design.Structure.Material, err = parseMaterial(doc.Structure.Material); err != nil {
		return model.Genome{}, err
	}
	if design.Structure.Frame, err = parseFrame(doc.Structure.Frame); err != nil {
		return model.Genome{}, err
	}
	if design.MEP.HVAC, err = parseHVAC(doc.MEP.HVAC); err != nil {
		return model.Genome{}, err
	}
	if design.MEP.Lighting, err = parseLighting(doc.MEP.Lighting); err != nil {
		return model.Genome{}, err
	}
	if design.MEP.Plumbing, err = parsePlumbing(doc.MEP.Plumbing); err != nil {
		return model.Genome{}, err
	}
	if design.Facade.Material, err = parseFacade(doc.Facade.Material); err != nil {
		return model.Genome{}, err
	}

	g := genome.Encode(design, id)
	if err := checkRanges(doc, g); err != nil {
		return model.Genome{}, err
	}
	return g, nil
}

// checkRanges rejects documents whose dimensions were altered by clamping.
func checkRanges(doc Document, g model.Genome) error {
	type check struct {
		name string
		have float64
		got  float64
	}
	checks := []check{
		{"envelope.height_m", doc.Envelope.Height, g.Values[genome.GeneHeight]},
		{"envelope.width_m", doc.Envelope.Width, g.Values[genome.GeneWidth]},
		{"envelope.length_m", doc.Envelope.Length, g.Values[genome.GeneLength]},
		{"floors.count", float64(doc.Floors.Count), g.Values[genome.GeneFloors]},
		{"floors.height_m", doc.Floors.Height, g.Values[genome.GeneFloorHeight]},
		{"facade.window_ratio", doc.Facade.WindowRatio, g.Values[genome.GeneWindowRatio]},
	}
	for _, c := range checks {
		if c.have != c.got {
			return fmt.Errorf("%s out of range: %v", c.name, c.have)
		}
	}
	return nil
}

// ReadFile loads and validates an exchange document, returning the genome it
// describes.
func ReadFile(path, id string) (model.Genome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Genome{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Genome{}, fmt.Errorf("parse design document: %w", err)
	}
	return doc.ToGenome(id)
}

// WriteFile exports a genome as an exchange document.
func WriteFile(path string, g model.Genome, fitness map[string]float64) error {
	doc := FromDesign(genome.Decode(g), g.ID, fitness)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func parseShape(s string) (genome.Shape, error) {
	switch s {
	case "rectangular":
		return genome.ShapeRectangular, nil
	case "l-shaped":
		return genome.ShapeLShaped, nil
	case "u-shaped":
		return genome.ShapeUShaped, nil
	}
	return 0, fmt.Errorf("unknown shape: %q", s)
}

func parseMaterial(s string) (genome.Material, error) {
	switch s {
	case "concrete":
		return genome.MaterialConcrete, nil
	case "steel":
		return genome.MaterialSteel, nil
	case "wood":
		return genome.MaterialWood, nil
	}
	return 0, fmt.Errorf("unknown material: %q", s)
}

func parseFrame(s string) (genome.FrameType, error) {
	switch s {
	case "moment_frame":
		return genome.FrameMoment, nil
	case "braced_frame":
		return genome.FrameBraced, nil
	case "shear_wall":
		return genome.FrameShearWall, nil
	}
	return 0, fmt.Errorf("unknown frame: %q", s)
}

func parseHVAC(s string) (genome.HVACType, error) {
	switch s {
	case "central":
		return genome.HVACCentral, nil
	case "distributed":
		return genome.HVACDistributed, nil
	case "hybrid":
		return genome.HVACHybrid, nil
	}
	return 0, fmt.Errorf("unknown hvac: %q", s)
}

func parseLighting(s string) (genome.LightingType, error) {
	switch s {
	case "led":
		return genome.LightingLED, nil
	case "fluorescent":
		return genome.LightingFluorescent, nil
	case "incandescent":
		return genome.LightingIncandescent, nil
	}
	return 0, fmt.Errorf("unknown lighting: %q", s)
}

func parsePlumbing(s string) (genome.PlumbingType, error) {
	switch s {
	case "central":
		return genome.PlumbingCentral, nil
	case "distributed":
		return genome.PlumbingDistributed, nil
	}
	return 0, fmt.Errorf("unknown plumbing: %q", s)
}

func parseFacade(s string) (genome.FacadeMaterial, error) {
	switch s {
	case "glass":
		return genome.FacadeGlass, nil
	case "metal":
		return genome.FacadeMetal, nil
	case "composite":
		return genome.FacadeComposite, nil
	}
	return 0, fmt.Errorf("unknown facade material: %q", s)
}
