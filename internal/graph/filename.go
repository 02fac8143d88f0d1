package graph

import (
	"fmt"
	"strings"
)

var labelReplacer = strings.NewReplacer(
	"(", "",
	")", "",
	"'", "",
	`"`, "",
	",", "",
	" ", "_",
	"/", "-",
	"&", "_and_",
)

// FileName turns a stage or branch label into a file system name:
// "Build & Test (x86)" becomes "Build_and_Test_x86". fallbackID is used when
// nothing printable is left.
func FileName(label string, fallbackID int) string {
	name := labelReplacer.Replace(label)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	name = strings.Trim(name, "_")
	if name == "" || name == "." || name == ".." {
		return fmt.Sprintf("node-%d", fallbackID)
	}
	return name
}
