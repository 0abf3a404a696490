package scraper

// Extraction failure reasons
const (
	ReasonNoTable   = "no_table"   // data table never became visible
	ReasonNoHeaders = "no_headers" // table present but without header cells
	ReasonNoRows    = "no_rows"    // table present but every row was empty
)

// ExtractionError represents a failure to pull the data table out of the
// page. The walk treats it as fatal for one day only.
type ExtractionError struct {
	Reason  string
	Message string
}

func (e *ExtractionError) Error() string {
	return e.Message
}
