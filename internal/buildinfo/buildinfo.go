// Package buildinfo carries version stamps injected with -ldflags -X.
package buildinfo

import (
    "fmt"
    "runtime"
    "runtime/debug"
)

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

// Info is the stamp set plus the Go toolchain and, when Commit was not
// injected, the VCS revision recorded by the toolchain.
func Info() map[string]string {
    commit := Commit
    if commit == "" {
        if bi, ok := debug.ReadBuildInfo(); ok {
            for _, s := range bi.Settings {
                if s.Key == "vcs.revision" {
                    commit = s.Value
                }
            }
        }
    }
    return map[string]string{
        "version": Version,
        "commit":  commit,
        "builtAt": BuiltAt,
        "go":      runtime.Version(),
    }
}

func String() string {
    i := Info()
    return fmt.Sprintf("qsteel %s (commit %s, built %s, %s)", i["version"], orNone(i["commit"]), orNone(i["builtAt"]), i["go"])
}

func orNone(s string) string {
    if s == "" {
        return "none"
    }
    return s
}
