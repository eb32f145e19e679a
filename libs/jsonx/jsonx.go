package jsonx

import (
	"github.com/json-iterator/go"
)

// _jsonx decodes build artifacts.
var _jsonx = jsoniter.Config{
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

var (
	Unmarshal = _jsonx.Unmarshal
)
