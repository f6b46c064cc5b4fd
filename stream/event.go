package stream

import (
	"time"
)

//Event is not thread safety
type Event struct {
	Meta    map[string]any `json:"meta"`
	Message any            `json:"message"`
	Time    time.Time      `json:"time"`
}
