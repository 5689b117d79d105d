package dtos

// ClearlyDefinedCuration is a curation file of the ClearlyDefined
// curated-data repository. It is keyed by the package coordinates and
// holds one entry per curated revision.
type ClearlyDefinedCuration struct {
	Coordinates ClearlyDefinedCoordinates         `json:"coordinates" yaml:"coordinates"`
	Revisions   map[string]ClearlyDefinedRevision `json:"revisions" yaml:"revisions"`
}

type ClearlyDefinedCoordinates struct {
	Type      string `json:"type" yaml:"type"`
	Provider  string `json:"provider" yaml:"provider"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
}

type ClearlyDefinedRevision struct {
	Licensed struct {
		Declared string `json:"declared" yaml:"declared"`
	} `json:"licensed" yaml:"licensed"`
	Files []ClearlyDefinedFile `json:"files" yaml:"files"`
}

type ClearlyDefinedFile struct {
	Path    string `json:"path" yaml:"path"`
	License string `json:"license" yaml:"license"`
}
