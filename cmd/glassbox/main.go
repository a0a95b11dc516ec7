package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/jiangshenghai57/glassbox/engine"
	"github.com/jiangshenghai57/glassbox/logger"
	"github.com/jiangshenghai57/glassbox/refmap"
	"github.com/jiangshenghai57/glassbox/store"
)

func loadJSON[T any](path string) (T, error) {
	var out T
	file, err := os.Open(path)
	if err != nil {
		return out, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&out); err != nil {
		return out, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}

func main() {
	inputsPath := "model-inputs.json"
	calcsPath := "model-calculations.json"
	if len(os.Args) > 2 {
		inputsPath = os.Args[1]
		calcsPath = os.Args[2]
	}

	log, err := logger.NewLogger("./logs")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		os.Exit(1)
	}

	inputs, err := loadJSON[refmap.Document](inputsPath)
	if err != nil {
		log.Error("failed to load inputs document", "error", err)
		os.Exit(1)
	}
	calcs, err := loadJSON[engine.CalculationDocument](calcsPath)
	if err != nil {
		log.Error("failed to load calculations document", "error", err)
		os.Exit(1)
	}

	e := engine.New(inputs, calcs, log)

	if cache, err := store.NewASTCache("./cache"); err != nil {
		log.Warn("ast cache unavailable, parsing formulas uncached", "error", err)
	} else {
		defer cache.Close()
		e.SetASTCache(cache)
	}

	e.Run()

	printResults(e)
}

func printResults(e *engine.Engine) {
	table := tablewriter.NewTable(os.Stdout)
	table.Header([]string{"Ref", "Name", "First", "Last", "Error"})

	errs := e.Errors()
	for _, nr := range e.CalculationNames() {
		values, ok := e.GetResult(nr.Ref)
		first, last := "-", "-"
		if ok && len(values) > 0 {
			first = fmt.Sprintf("%.4f", values[0])
			last = fmt.Sprintf("%.4f", values[len(values)-1])
		}

		errCell := ""
		if msg, failed := errs[nr.Ref]; failed {
			errCell = color.RedString(msg)
		}

		if err := table.Append([]string{nr.Ref, nr.Name, first, last, errCell}); err != nil {
			fmt.Fprintln(os.Stderr, "failed to append row:", err)
		}
	}

	if err := table.Render(); err != nil {
		fmt.Fprintln(os.Stderr, "failed to render table:", err)
	}

	if len(errs) > 0 {
		fmt.Println(color.YellowString("%d calculation(s) failed to evaluate", len(errs)))
	}
}
