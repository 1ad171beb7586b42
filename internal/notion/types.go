package notion

import "encoding/json"

// Page is a database row as returned by the Notion API.
type Page struct {
	ID             string     `json:"id"`
	CreatedTime    string     `json:"created_time,omitempty"`
	LastEditedTime string     `json:"last_edited_time,omitempty"`
	URL            string     `json:"url,omitempty"`
	Properties     Properties `json:"properties"`
}

// Property is a single typed page property. Only the field matching Type is
// populated.
type Property struct {
	ID          string         `json:"id,omitempty"`
	Type        string         `json:"type"`
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	Status      *SelectOption  `json:"status,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Date        *DateRange     `json:"date,omitempty"`
	Number      *float64       `json:"number,omitempty"`
}

// RichText is one span of Notion rich text.
type RichText struct {
	Type        string      `json:"type,omitempty"`
	PlainText   string      `json:"plain_text"`
	Href        *string     `json:"href,omitempty"`
	Annotations Annotations `json:"annotations"`
	Text        *TextObject `json:"text,omitempty"`
}

// Annotations are the style flags of a rich text span.
type Annotations struct {
	Bold          bool   `json:"bold"`
	Italic        bool   `json:"italic"`
	Strikethrough bool   `json:"strikethrough"`
	Underline     bool   `json:"underline"`
	Code          bool   `json:"code"`
	Color         string `json:"color,omitempty"`
}

// TextObject is the "text" payload of a rich text span.
type TextObject struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// Link is a hyperlink target.
type Link struct {
	URL string `json:"url"`
}

// SelectOption is a select, status or multi-select option.
type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// DateRange is a date property value. Start may be date-only
// ("2025-03-10") or carry a time.
type DateRange struct {
	Start    string  `json:"start"`
	End      *string `json:"end,omitempty"`
	TimeZone *string `json:"time_zone,omitempty"`
}

// Query selects pages from a database.
type Query struct {
	// DatabaseID overrides the client's default database.
	DatabaseID string
	Filter     Filter
	Sorts      []Sort
	// Limit caps the number of pages returned. Zero drains every page.
	Limit int
}

// Filter is a Notion database filter object.
type Filter map[string]interface{}

// Sort orders query results by a property.
type Sort struct {
	Property  string `json:"property"`
	Direction string `json:"direction"`
}

type queryRequest struct {
	Filter      Filter `json:"filter,omitempty"`
	Sorts       []Sort `json:"sorts,omitempty"`
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
}

type listResponse struct {
	Object     string            `json:"object"`
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor *string           `json:"next_cursor"`
}

type commentRequest struct {
	Parent   commentParent `json:"parent"`
	RichText []commentText `json:"rich_text"`
}

type commentText struct {
	Type string     `json:"type"`
	Text TextObject `json:"text"`
}

type commentParent struct {
	PageID string `json:"page_id"`
}

type patchRequest struct {
	Properties PropertyPatch `json:"properties"`
}
