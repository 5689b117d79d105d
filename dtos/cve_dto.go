package dtos

// CveRecord is a CVE record in the CVE JSON 5 format as published by the
// cvelistV5 repository.
type CveRecord struct {
	DataType    string        `json:"dataType"`
	DataVersion string        `json:"dataVersion"`
	CveMetadata CveMetadata   `json:"cveMetadata"`
	Containers  CveContainers `json:"containers"`
}

type CveMetadata struct {
	CveID             string `json:"cveId"`
	AssignerOrgID     string `json:"assignerOrgId"`
	AssignerShortName string `json:"assignerShortName"`
	State             string `json:"state"`
	DateReserved      string `json:"dateReserved"`
	DatePublished     string `json:"datePublished"`
	DateUpdated       string `json:"dateUpdated"`
	DateRejected      string `json:"dateRejected"`
}

type CveContainers struct {
	Cna CveContainer   `json:"cna"`
	Adp []CveContainer `json:"adp"`
}

type CveDescription struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type CveContainer struct {
	Title            string `json:"title"`
	ProviderMetadata struct {
		OrgID       string `json:"orgId"`
		ShortName   string `json:"shortName"`
		DateUpdated string `json:"dateUpdated"`
	} `json:"providerMetadata"`
	DatePublic      string           `json:"datePublic"`
	Descriptions    []CveDescription `json:"descriptions"`
	RejectedReasons []CveDescription `json:"rejectedReasons"`
	ProblemTypes    []struct {
		Descriptions []struct {
			CweID       string `json:"cweId"`
			Lang        string `json:"lang"`
			Description string `json:"description"`
			Type        string `json:"type"`
		} `json:"descriptions"`
	} `json:"problemTypes"`
	Metrics []CveMetric `json:"metrics"`
}

type CveCvss struct {
	Version      string  `json:"version"`
	VectorString string  `json:"vectorString"`
	BaseScore    float64 `json:"baseScore"`
	BaseSeverity string  `json:"baseSeverity"`
}

type CveMetric struct {
	CvssV3_0 *CveCvss `json:"cvssV3_0"`
	CvssV3_1 *CveCvss `json:"cvssV3_1"`
	CvssV4_0 *CveCvss `json:"cvssV4_0"`
}

func (c CveRecord) IsRejected() bool {
	return c.CveMetadata.State == "REJECTED"
}
