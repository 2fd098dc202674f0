package consts

import "os"

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// DefaultConfigFile is the configuration file looked up in the working directory
	DefaultConfigFile = "dbmaint.yaml"

	// DefaultRegistryTable is the name of the executed-scripts tracking table
	DefaultRegistryTable = "dbmaintain_scripts"

	// DefaultPostProcessingDir is the top-level directory holding postprocessing scripts
	DefaultPostProcessingDir = "postprocessing"

	// DefaultPatchQualifier marks scripts that may run out of sequence
	DefaultPatchQualifier = "patch"

	// DefaultEncoding is the script encoding used when none is configured
	DefaultEncoding = "UTF-8"

	// DefaultLowestSequenceValue is the value sequences and identity columns are raised to
	DefaultLowestSequenceValue = int64(1000)

	// DefaultClickHouseImage is the image used by the ClickHouse integration tests
	DefaultClickHouseImage = "clickhouse/clickhouse-server:25.7"
)

// DefaultScriptExtensions are the file extensions treated as scripts.
var DefaultScriptExtensions = []string{"sql", "ddl"}
