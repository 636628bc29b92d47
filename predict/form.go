package predict

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

// FieldKind selects how a field is rendered and parsed.
type FieldKind int

const (
	Number FieldKind = iota
	Slider
	Checkbox
	// Hidden fields are never shown; they submit Default, or the value of
	// CopyOf when set.
	Hidden
)

func (k FieldKind) String() string {
	switch k {
	case Number:
		return "number"
	case Slider:
		return "slider"
	case Checkbox:
		return "checkbox"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Field is one input of a Form. Name is the feature column it fills.
type Field struct {
	Name    string
	Label   string
	Kind    FieldKind
	Min     float64
	Max     float64
	Default float64
	// Step is the increment of the input widget; 1 also requires whole numbers.
	Step   float64
	CopyOf string
	Group  string
}

// HasMin reports whether the field has a finite lower bound.
func (f Field) HasMin() bool { return !math.IsInf(f.Min, -1) }

// HasMax reports whether the field has a finite upper bound.
func (f Field) HasMax() bool { return !math.IsInf(f.Max, 1) }

// Visible reports whether the field is rendered.
func (f Field) Visible() bool { return f.Kind != Hidden }

// Form describes the input page for one kind of model.
type Form struct {
	Name        string
	Title       string
	Description string
	Submit      string
	Disclaimer  string
	Fields      []Field
}

// Columns returns the feature columns filled by the form, in order.
func (f *Form) Columns() []string {
	cols := make([]string, len(f.Fields))
	for i, fd := range f.Fields {
		cols[i] = fd.Name
	}
	return cols
}

// Groups returns the distinct visible field groups in order of appearance.
func (f *Form) Groups() []string {
	var groups []string
	seen := map[string]bool{}
	for _, fd := range f.Fields {
		if !fd.Visible() || seen[fd.Group] {
			continue
		}
		seen[fd.Group] = true
		groups = append(groups, fd.Group)
	}
	return groups
}

// InGroup returns the visible fields of group g.
func (f *Form) InGroup(g string) []Field {
	var out []Field
	for _, fd := range f.Fields {
		if fd.Visible() && fd.Group == g {
			out = append(out, fd)
		}
	}
	return out
}

// Parse reads submitted values into a named FeatureVector. Missing numeric
// inputs take their default; a missing checkbox is unchecked.
func (f *Form) Parse(values url.Values) (FeatureVector, error) {
	out := make([]float64, len(f.Fields))
	index := make(map[string]int, len(f.Fields))
	for i, fd := range f.Fields {
		index[fd.Name] = i
	}

	for i, fd := range f.Fields {
		switch fd.Kind {
		case Hidden:
			out[i] = fd.Default
		case Checkbox:
			out[i] = 0
			if checked(values.Get(fd.Name)) {
				out[i] = 1
			}
		default:
			raw := strings.TrimSpace(values.Get(fd.Name))
			if raw == "" {
				out[i] = fd.Default
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return FeatureVector{}, errors.NewValidationError(fd.Name, "must be a number", raw)
			}
			if err := fd.check(v); err != nil {
				return FeatureVector{}, err
			}
			out[i] = v
		}
	}

	for i, fd := range f.Fields {
		if fd.CopyOf == "" {
			continue
		}
		j, ok := index[fd.CopyOf]
		if !ok {
			return FeatureVector{}, errors.NewValidationError(fd.Name, "copies unknown field", fd.CopyOf)
		}
		out[i] = out[j]
	}
	return FeatureVector{Columns: f.Columns(), Values: out}, nil
}

func (fd Field) check(v float64) error {
	if v < fd.Min {
		return errors.NewValidationError(fd.Name, "must be at least "+formatBound(fd.Min), v)
	}
	if v > fd.Max {
		return errors.NewValidationError(fd.Name, "must be at most "+formatBound(fd.Max), v)
	}
	if fd.Step == 1 && v != math.Trunc(v) {
		return errors.NewValidationError(fd.Name, "must be a whole number", v)
	}
	return nil
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func checked(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// Built-in form names.
const (
	FormGeneric = "generic"
	FormHouse   = "house"
	FormMedical = "medical"
)

// FormNames lists the built-in forms.
func FormNames() []string {
	return []string{FormGeneric, FormHouse, FormMedical}
}

// LookupForm returns the named built-in form. The generic form has one number
// field per feature column.
func LookupForm(name string, features []string) (*Form, error) {
	switch name {
	case FormGeneric, "":
		return GenericForm(features), nil
	case FormHouse:
		return HouseForm(), nil
	case FormMedical:
		return MedicalForm(), nil
	}
	return nil, errors.NewValidationError("form", "unknown form", name)
}

// GenericForm builds an unbounded number field for each column.
func GenericForm(features []string) *Form {
	f := &Form{
		Name:        FormGeneric,
		Title:       "Prediction",
		Description: "Enter a value for every feature the model was trained on.",
		Submit:      "Predict",
	}
	for _, c := range features {
		f.Fields = append(f.Fields, Field{
			Name:  c,
			Label: c,
			Kind:  Number,
			Min:   math.Inf(-1),
			Max:   math.Inf(1),
		})
	}
	return f
}

func count(name, label string, def float64, group string) Field {
	return Field{Name: name, Label: label, Kind: Number, Min: 0, Max: math.Inf(1), Default: def, Step: 1, Group: group}
}

func bounded(name, label string, min, max, def float64, group string) Field {
	return Field{Name: name, Label: label, Kind: Number, Min: min, Max: max, Default: def, Step: 1, Group: group}
}

func slider(name, label string, def float64, group string) Field {
	return Field{Name: name, Label: label, Kind: Slider, Min: 1, Max: 10, Default: def, Step: 1, Group: group}
}

func constant(name string, v float64) Field {
	return Field{Name: name, Kind: Hidden, Default: v}
}

// HouseForm is the house price form. Its columns follow the Ames housing
// numeric schema, with the columns users never edit sent as constants.
func HouseForm() *Form {
	const (
		details = "House Details"
		extra   = "Additional Features"
	)
	return &Form{
		Name:        FormHouse,
		Title:       "House Price Predictor",
		Description: "Predict house prices from the property's key features.",
		Submit:      "Predict Price",
		Fields: []Field{
			constant("Order", 1),
			constant("PID", 5286),
			constant("MS SubClass", 20),
			count("Lot Frontage", "Lot Frontage (ft)", 80, extra),
			count("Lot Area", "Lot Area (sq ft)", 9600, details),
			slider("Overall Qual", "Overall Quality (1-10)", 5, details),
			slider("Overall Cond", "Overall Condition (1-10)", 7, details),
			bounded("Year Built", "Year Built", 1800, 2024, 1961, details),
			bounded("Year Remod/Add", "Year Remodeled", 1800, 2024, 1961, details),
			count("Mas Vnr Area", "Masonry Veneer Area (sq ft)", 0, extra),
			count("BsmtFin SF 1", "Basement Finished Area 1 (sq ft)", 700, extra),
			count("BsmtFin SF 2", "Basement Finished Area 2 (sq ft)", 0, extra),
			count("Bsmt Unf SF", "Basement Unfinished Area (sq ft)", 150, extra),
			count("Total Bsmt SF", "Total Basement Area (sq ft)", 850, details),
			count("1st Flr SF", "1st Floor Area (sq ft)", 856, details),
			count("2nd Flr SF", "2nd Floor Area (sq ft)", 854, details),
			constant("Low Qual Fin SF", 0),
			count("Gr Liv Area", "Above Grade Living Area (sq ft)", 1710, details),
			constant("Bsmt Full Bath", 0),
			constant("Bsmt Half Bath", 0),
			count("Full Bath", "Full Bathrooms", 1, details),
			count("Half Bath", "Half Bathrooms", 0, details),
			count("Bedroom AbvGr", "Bedrooms Above Grade", 3, details),
			constant("Kitchen AbvGr", 1),
			count("TotRms AbvGrd", "Total Rooms Above Grade", 7, details),
			count("Fireplaces", "Fireplaces", 2, details),
			{Name: "Garage Yr Blt", Kind: Hidden, CopyOf: "Year Built"},
			count("Garage Cars", "Garage Cars", 2, details),
			count("Garage Area", "Garage Area (sq ft)", 500, details),
			count("Wood Deck SF", "Wood Deck Area (sq ft)", 210, extra),
			count("Open Porch SF", "Open Porch Area (sq ft)", 0, extra),
			constant("Enclosed Porch", 0),
			constant("3Ssn Porch", 0),
			constant("Screen Porch", 0),
			constant("Pool Area", 0),
			constant("Misc Val", 0),
			bounded("Mo Sold", "Month Sold", 1, 12, 5, extra),
			bounded("Yr Sold", "Year Sold", 2000, 2024, 2010, extra),
		},
	}
}

// MedicalForm is the symptom checklist form.
func MedicalForm() *Form {
	const symptoms = "Patient Symptoms"
	check := func(name, label string) Field {
		return Field{Name: name, Label: label, Kind: Checkbox, Min: 0, Max: 1, Group: symptoms}
	}
	return &Form{
		Name:        FormMedical,
		Title:       "Medical Diagnosis Predictor",
		Description: "Select the symptoms the patient shows.",
		Submit:      "Analyze Symptoms",
		Disclaimer:  "Disclaimer: This tool is for educational purposes and provides preliminary estimates only.",
		Fields: []Field{
			check("fever", "Fever"),
			check("cough", "Cough"),
			check("fatigue", "Fatigue"),
			check("nausea", "Nausea"),
			check("headache", "Headache"),
		},
	}
}
