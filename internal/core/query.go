package core

import (
	"strings"

	"lambdahash/internal/platform/validate"
)

// Query keys understood by the service. Any other key is bound into the
// fingerprint verbatim.
const (
	KeyProjectPath      = "project_path"
	KeyName             = "name"
	KeyOutputPath       = "output_path"
	KeyLibPath          = "lib_path"
	KeyRequirementsFile = "requirements_file"

	KeyProjectPathHash      = "project_path_hash"
	KeyLibPathHash          = "lib_path_hash"
	KeyRequirementsFileHash = "requirements_file_hash"
)

// Query is the flat string map received from the infrastructure tool.
type Query map[string]string

// queryView is the typed projection of the required keys used for validation.
type queryView struct {
	ProjectPath string `json:"project_path" validate:"required"`
	Name        string `json:"name" validate:"required,basename"`
	OutputPath  string `json:"output_path" validate:"required"`
}

// Validate rejects a query that lacks a required key. It never touches the
// filesystem.
func (q Query) Validate() error {
	if q == nil {
		return malformedf("", "query must be a JSON object")
	}
	view := queryView{
		ProjectPath: strings.TrimSpace(q[KeyProjectPath]),
		Name:        strings.TrimSpace(q[KeyName]),
		OutputPath:  strings.TrimSpace(q[KeyOutputPath]),
	}
	if err := validate.Struct(view); err != nil {
		if issue, ok := err.(*validate.Issue); ok {
			return malformedf(issue.Field, "%s", issue.Message)
		}
		return internalf(err, "validating query")
	}
	return nil
}

// Optional returns the value of an optional key and whether it was declared.
// A missing key, an empty value, and the literal "null" are all undeclared.
func (q Query) Optional(key string) (string, bool) {
	v, ok := q[key]
	if !ok {
		return "", false
	}
	if strings.TrimSpace(v) == "" || v == "null" {
		return "", false
	}
	return v, true
}

// Clone returns a shallow copy of q.
func (q Query) Clone() Query {
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// Result is the record returned to the infrastructure tool.
type Result struct {
	// SHA is the hex-encoded fingerprint of all inputs.
	SHA string `json:"sha"`

	// OutputFilepath is the resolved artifact path.
	OutputFilepath string `json:"output_filepath"`

	// ISODate is the time the decision was made.
	ISODate string `json:"isodate"`
}

// Map returns r as the string-valued record written to stdout.
func (r Result) Map() map[string]string {
	return map[string]string{
		"sha":             r.SHA,
		"output_filepath": r.OutputFilepath,
		"isodate":         r.ISODate,
	}
}
