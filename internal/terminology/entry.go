package terminology

import (
	"fmt"
	"strings"
)

// anatomicContextName is the fixed context for anatomic region codes.
const anatomicContextName = "Anatomic codes - DICOM master list"

// Entry is a deserialized terminology entry string: the context the
// category/type/modifier codes belong to, plus anatomic region codes from
// the DICOM master list.
type Entry struct {
	ContextName            string
	Category               CodeTriple
	Type                   CodeTriple
	TypeModifier           CodeTriple
	AnatomicContextName    string
	AnatomicRegion         CodeTriple
	AnatomicRegionModifier CodeTriple
}

// String serializes the entry into the tag format consumed by the host
// application: fields joined by "~", "^" within a code triple, "|"
// terminator.
func (e Entry) String() string {
	anatomicContext := e.AnatomicContextName
	if anatomicContext == "" {
		anatomicContext = anatomicContextName
	}
	return e.ContextName +
		"~" + e.Category.serialize() +
		"~" + e.Type.serialize() +
		"~" + e.TypeModifier.serialize() +
		"~" + anatomicContext +
		"~" + e.AnatomicRegion.serialize() +
		"~" + e.AnatomicRegionModifier.serialize() +
		"|"
}

// ParseEntry deserializes a terminology entry string.
func ParseEntry(raw string) (Entry, error) {
	trimmed := strings.TrimSuffix(raw, "|")
	if trimmed == raw {
		return Entry{}, fmt.Errorf("terminology entry %q: missing %q terminator", raw, "|")
	}
	fields := strings.Split(trimmed, "~")
	if len(fields) != 7 {
		return Entry{}, fmt.Errorf("terminology entry %q: want 7 tilde-separated fields, got %d", raw, len(fields))
	}

	entry := Entry{
		ContextName:         fields[0],
		AnatomicContextName: fields[4],
	}
	var err error
	if entry.Category, err = parseCodeTriple(fields[1]); err != nil {
		return Entry{}, err
	}
	if entry.Type, err = parseCodeTriple(fields[2]); err != nil {
		return Entry{}, err
	}
	if entry.TypeModifier, err = parseCodeTriple(fields[3]); err != nil {
		return Entry{}, err
	}
	if entry.AnatomicRegion, err = parseCodeTriple(fields[5]); err != nil {
		return Entry{}, err
	}
	if entry.AnatomicRegionModifier, err = parseCodeTriple(fields[6]); err != nil {
		return Entry{}, err
	}
	return entry, nil
}
