package main

import (
	"strings"
	"time"

	"anatomap/internal/engine"
)

const summaryRounding = time.Millisecond * 100

// engineRequest translates CLI flags into an engine request. Comma-separated
// values inside a single --target flag are split, so both
// "--target liver --target spleen" and "--target liver,spleen" work.
func engineRequest(input, task string, targets []string, name string) engine.Request {
	var labels []string
	for _, value := range targets {
		for _, label := range strings.Split(value, ",") {
			label = strings.TrimSpace(label)
			if label != "" {
				labels = append(labels, label)
			}
		}
	}
	return engine.Request{
		InputFile:     input,
		TaskID:        strings.TrimSpace(task),
		Targets:       labels,
		ContainerName: strings.TrimSpace(name),
	}
}
