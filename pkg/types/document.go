// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the onenote2epub pipeline:
// document records that flow between stages and the configuration tree.
package types

import "time"

// ConversionStatus indicates the outcome of one pipeline step for a document.
type ConversionStatus string

const (
	ConversionNone    ConversionStatus = "none"
	ConversionDone    ConversionStatus = "converted"
	ConversionSkipped ConversionStatus = "skipped"
	ConversionFailed  ConversionStatus = "failed"
)

// Stage names the pipeline step a Document record belongs to.
type Stage string

const (
	StageConvert Stage = "convert"
	StageMerge   Stage = "merge"
	StageTitles  Stage = "titles"
	StageCombine Stage = "combine"
)

// Document records one source file (or folder, for merge stages) and what
// the pipeline produced from it.
type Document struct {
	// Source is the absolute path of the input (a .docx file or an EPUB folder).
	Source string `json:"source" yaml:"source"`

	// Output is the path of the produced EPUB, empty when the step failed.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Stage is the pipeline step that produced this record.
	Stage Stage `json:"stage" yaml:"stage"`

	// Status is the outcome of the step.
	Status ConversionStatus `json:"status" yaml:"status"`

	// Detail carries the error text or a short note.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`

	// Finished is when the step completed.
	Finished time.Time `json:"finished" yaml:"finished"`
}
