package domain

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// RecordPage is one page of stored job records, newest first.
type RecordPage struct {
	Records []Job `json:"transcriptions"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// NormalizePaging clamps a requested page and page size.
func NormalizePaging(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return page, perPage
}

// NewRecordPage fills the pagination fields for records taken at page.
func NewRecordPage(records []Job, page, perPage int, total int64) RecordPage {
	if records == nil {
		records = []Job{}
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	return RecordPage{
		Records: records,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// TextEdit replaces the stored text of a completed transcription.
// Nil fields are left unchanged.
type TextEdit struct {
	Text        *string `json:"text"`
	SpeakerText *string `json:"speakers_text"`
}

// Empty reports whether the edit changes nothing.
func (e TextEdit) Empty() bool {
	return e.Text == nil && e.SpeakerText == nil
}

// Apply writes the edit into result.
func (e TextEdit) Apply(result *TranscriptionResult) {
	if e.Text != nil {
		result.FullText = *e.Text
	}
	if e.SpeakerText != nil {
		result.SpeakerText = *e.SpeakerText
	}
}
