// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prompt

import (
	"fmt"
	"io"
	"os"
)

// RunAnswers are the inputs of an interactive run.
type RunAnswers struct {
	Root    string
	Combine bool
	Title   string
	Author  string
}

// RunFields returns the questions of an interactive run.
func RunFields(defaultRoot, defaultAuthor string) []Field {
	combine := func(a Answers) bool { return a.Bool("combine") }
	return []Field{
		{
			Key:      "root",
			Label:    "Notebook folder:",
			Default:  defaultRoot,
			Validate: requireDir,
		},
		{
			Key:     "combine",
			Label:   "Combine all books into one?",
			Default: "n",
			Kind:    Confirm,
		},
		{
			Key:      "title",
			Label:    "Combined title:",
			Validate: nonEmpty("title"),
			When:     combine,
		},
		{
			Key:     "author",
			Label:   "Combined author:",
			Default: defaultAuthor,
			When:    combine,
		},
	}
}

// AskRun asks the run questions.
func AskRun(defaultRoot, defaultAuthor string, in io.Reader, out io.Writer) (RunAnswers, error) {
	a, err := Ask(RunFields(defaultRoot, defaultAuthor), in, out)
	if err != nil {
		return RunAnswers{}, err
	}
	return RunAnswers{
		Root:    a["root"],
		Combine: a.Bool("combine"),
		Title:   a["title"],
		Author:  a["author"],
	}, nil
}

func requireDir(p string) error {
	if p == "" {
		return fmt.Errorf("a folder is required")
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("%s does not exist", p)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a folder", p)
	}
	return nil
}

func nonEmpty(what string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("a %s is required", what)
		}
		return nil
	}
}
