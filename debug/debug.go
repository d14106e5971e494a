package debug

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

const CSWDEBUG = "CSWDEBUG"

func init() {
	// XXX may want to set log.Ldate when not debugging
	log.SetFlags(log.Ltime | log.Lmicroseconds)
}

//
// Debug output is controled by CSWDEBUG environment variable, which
// can be a list of labels (e.g., "BENCH;WORKER").
//

var (
	mu     sync.Mutex
	labels map[Tselector]bool
	name   = filepath.Base(os.Args[0])
)

func debugLabels() map[Tselector]bool {
	mu.Lock()
	defer mu.Unlock()
	if labels == nil {
		labels = parseLabels(os.Getenv(CSWDEBUG))
	}
	return labels
}

func parseLabels(s string) map[Tselector]bool {
	m := make(map[Tselector]bool)
	if s == "" {
		return m
	}
	for _, l := range strings.Split(s, ";") {
		m[Tselector(strings.TrimSpace(l))] = true
	}
	return m
}

// SetLabels replaces the labels read from CSWDEBUG.
func SetLabels(s string) {
	mu.Lock()
	defer mu.Unlock()
	labels = parseLabels(s)
}

// SetName sets the name prefixed to every line, e.g. "parent" or "child".
func SetName(n string) {
	mu.Lock()
	defer mu.Unlock()
	name = n
}

func getName() string {
	mu.Lock()
	defer mu.Unlock()
	return name
}

func WillBePrinted(label Tselector) bool {
	if label == ALWAYS {
		return true
	}
	if label == NEVER {
		return false
	}
	_, ok := debugLabels()[label]
	return ok
}

func DPrintf(label Tselector, format string, v ...interface{}) {
	if WillBePrinted(label) {
		log.Printf("%v %v %v", getName(), label, fmt.Sprintf(format, v...))
	}
}

func DFatalf(format string, v ...interface{}) {
	// Get info for the caller.
	pc, file, line, ok := runtime.Caller(1)
	fnDetails := runtime.FuncForPC(pc)
	if ok && fnDetails != nil {
		log.Fatalf("FATAL %v %v %v:%v %v", getName(), fnDetails.Name(), file, line, fmt.Sprintf(format, v...))
	} else {
		log.Fatalf("FATAL %v (missing details) %v", getName(), fmt.Sprintf(format, v...))
	}
}
