package colstore

import "nanodb/internal/types"

// Analyzer chooses the on-disk encoding for one column of a bulk load,
// given every value the column will hold (§4.5: "writeTable(analyzer,
// tableInfo)" picks per-column encodings from the data being loaded).
type Analyzer interface {
	ChooseEncoding(col types.ColumnDesc, values []types.Value) Encoding
}

// HeuristicAnalyzer picks Dictionary for low-cardinality string columns,
// RunLength for columns whose values cluster into long runs, and
// Uncompressed otherwise. Grounded on the general column-store heuristic of
// favoring cardinality-aware encodings over a fixed choice; no pack example
// implements this, so the thresholds below are this implementation's own.
type HeuristicAnalyzer struct {
	// DictionaryMaxRatio bounds distinct-values/total-values for Dictionary
	// to be chosen over Uncompressed (default 0.1 if zero).
	DictionaryMaxRatio float64
	// RunLengthMinAvgRun is the minimum average run length (total rows /
	// run count) for RunLength to be chosen over Uncompressed (default 4
	// if zero).
	RunLengthMinAvgRun float64
}

func (a HeuristicAnalyzer) ChooseEncoding(col types.ColumnDesc, values []types.Value) Encoding {
	if len(values) == 0 {
		return Uncompressed
	}

	dictRatio := a.DictionaryMaxRatio
	if dictRatio == 0 {
		dictRatio = 0.1
	}
	runAvg := a.RunLengthMinAvgRun
	if runAvg == 0 {
		runAvg = 4
	}

	runs := buildRuns(values)
	avgRun := float64(len(values)) / float64(len(runs))
	if avgRun >= runAvg {
		return RunLength
	}

	if col.Type == types.VarChar || col.Type == types.Char {
		dict := buildDictionary(values)
		if float64(len(dict))/float64(len(values)) <= dictRatio {
			return Dictionary
		}
	}

	return Uncompressed
}
