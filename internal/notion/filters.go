package notion

// SelectEquals matches pages whose select property equals value.
func SelectEquals(property, value string) Filter {
	return Filter{"property": property, "select": map[string]interface{}{"equals": value}}
}

// RichTextNotEmpty matches pages whose rich text property has content.
func RichTextNotEmpty(property string) Filter {
	return Filter{"property": property, "rich_text": map[string]interface{}{"is_not_empty": true}}
}

// And combines filters; all must match.
func And(filters ...Filter) Filter {
	return Filter{"and": filters}
}

// Descending sorts by property, newest first.
func Descending(property string) Sort {
	return Sort{Property: property, Direction: "descending"}
}

// Ascending sorts by property, oldest first.
func Ascending(property string) Sort {
	return Sort{Property: property, Direction: "ascending"}
}
