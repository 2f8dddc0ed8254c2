package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadMode controls how errors are handled during schema loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading table schemas from a directory.
type LoadResult struct {
	Tables    []TableSchema
	CUEValue  cue.Value
	FileCount int
}

// LoadDir loads and compiles CUE table schemas from a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{fmt.Errorf("schema directory not found: %s", dir)}
	}
	if err != nil {
		return nil, []error{fmt.Errorf("accessing schema directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scanning schema directory: %w", err)}
	}
	if len(cueFiles) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded")}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fmt.Errorf("loading CUE files: %w", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{fmt.Errorf("building CUE value: %w", formatCUEError(err))}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	tablesVal := value.LookupPath(cue.ParsePath("table"))
	if tablesVal.Exists() {
		iter, iterErr := tablesVal.Fields()
		if iterErr != nil {
			errs = append(errs, fmt.Errorf("iterating tables: %w", iterErr))
			if mode == LoadModeFailFast {
				return result, errs
			}
		} else {
			for iter.Next() {
				ts, compileErr := CompileTable(iter.Value())
				if compileErr != nil {
					errs = append(errs, compileErr)
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				result.Tables = append(result.Tables, *ts)
			}
		}
	}

	if len(result.Tables) == 0 && len(errs) == 0 {
		errs = append(errs, fmt.Errorf("no tables found in schemas"))
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
