package dtos

// SpdxDocument is the subset of an SPDX 2.2 / 2.3 JSON document the graph
// needs.
type SpdxDocument struct {
	SpdxVersion                string                       `json:"spdxVersion"`
	DataLicense                string                       `json:"dataLicense"`
	SPDXID                     string                       `json:"SPDXID"`
	Name                       string                       `json:"name"`
	DocumentNamespace          string                       `json:"documentNamespace"`
	CreationInfo               SpdxCreationInfo             `json:"creationInfo"`
	DocumentDescribes          []string                     `json:"documentDescribes"`
	ExternalDocumentRefs       []SpdxExternalDocumentRef    `json:"externalDocumentRefs"`
	Packages                   []SpdxPackage                `json:"packages"`
	Files                      []SpdxFile                   `json:"files"`
	Relationships              []SpdxRelationship           `json:"relationships"`
	HasExtractedLicensingInfos []SpdxExtractedLicensingInfo `json:"hasExtractedLicensingInfos"`
}

type SpdxCreationInfo struct {
	Created            string   `json:"created"`
	Creators           []string `json:"creators"`
	LicenseListVersion string   `json:"licenseListVersion"`
}

type SpdxChecksum struct {
	Algorithm     string `json:"algorithm"`
	ChecksumValue string `json:"checksumValue"`
}

type SpdxExternalDocumentRef struct {
	ExternalDocumentID string       `json:"externalDocumentId"`
	SpdxDocument       string       `json:"spdxDocument"`
	Checksum           SpdxChecksum `json:"checksum"`
}

type SpdxExternalRef struct {
	ReferenceCategory string `json:"referenceCategory"`
	ReferenceType     string `json:"referenceType"`
	ReferenceLocator  string `json:"referenceLocator"`
}

type SpdxPackage struct {
	SPDXID           string            `json:"SPDXID"`
	Name             string            `json:"name"`
	VersionInfo      string            `json:"versionInfo"`
	Supplier         string            `json:"supplier"`
	DownloadLocation string            `json:"downloadLocation"`
	LicenseConcluded string            `json:"licenseConcluded"`
	LicenseDeclared  string            `json:"licenseDeclared"`
	CopyrightText    string            `json:"copyrightText"`
	ExternalRefs     []SpdxExternalRef `json:"externalRefs"`
}

type SpdxFile struct {
	SPDXID             string   `json:"SPDXID"`
	FileName           string   `json:"fileName"`
	LicenseConcluded   string   `json:"licenseConcluded"`
	LicenseInfoInFiles []string `json:"licenseInfoInFiles"`
}

type SpdxRelationship struct {
	SpdxElementID      string `json:"spdxElementId"`
	RelationshipType   string `json:"relationshipType"`
	RelatedSpdxElement string `json:"relatedSpdxElement"`
}

type SpdxExtractedLicensingInfo struct {
	LicenseID     string `json:"licenseId"`
	ExtractedText string `json:"extractedText"`
	Name          string `json:"name"`
	Comment       string `json:"comment"`
}
