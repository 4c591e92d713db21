package logger

import (
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Logger is a subsystem logger. All messages carry the subsystem's tag and
// are filtered by the logger's level before reaching the backend.
type Logger struct {
	lvl       Level // atomic
	tag       string
	b         *Backend
	writeChan chan logEntry
}

// Trace formats a message using the default formats for its operands and
// writes it at LevelTrace.
func (l *Logger) Trace(args ...interface{}) {
	l.print(LevelTrace, args...)
}

// Tracef formats a message according to a format specifier and writes it
// at LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) {
	l.printf(LevelTrace, format, args...)
}

// Debug writes a message at LevelDebug.
func (l *Logger) Debug(args ...interface{}) {
	l.print(LevelDebug, args...)
}

// Debugf writes a formatted message at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.printf(LevelDebug, format, args...)
}

// Info writes a message at LevelInfo.
func (l *Logger) Info(args ...interface{}) {
	l.print(LevelInfo, args...)
}

// Infof writes a formatted message at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.printf(LevelInfo, format, args...)
}

// Warn writes a message at LevelWarn.
func (l *Logger) Warn(args ...interface{}) {
	l.print(LevelWarn, args...)
}

// Warnf writes a formatted message at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.printf(LevelWarn, format, args...)
}

// Error writes a message at LevelError.
func (l *Logger) Error(args ...interface{}) {
	l.print(LevelError, args...)
}

// Errorf writes a formatted message at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.printf(LevelError, format, args...)
}

// Critical writes a message at LevelCritical.
func (l *Logger) Critical(args ...interface{}) {
	l.print(LevelCritical, args...)
}

// Criticalf writes a formatted message at LevelCritical.
func (l *Logger) Criticalf(format string, args ...interface{}) {
	l.printf(LevelCritical, format, args...)
}

// Level returns the current logging level.
func (l *Logger) Level() Level {
	return Level(atomic.LoadUint32((*uint32)(&l.lvl)))
}

// SetLevel changes the logging level to the passed level.
func (l *Logger) SetLevel(level Level) {
	atomic.StoreUint32((*uint32)(&l.lvl), uint32(level))
}

func (l *Logger) print(level Level, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.write(level, fmt.Sprint(args...))
}

func (l *Logger) printf(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.write(level, fmt.Sprintf(format, args...))
}

// write formats the message header and hands the entry to the backend. If
// the backend isn't running yet, the entry goes straight to stdout so
// early startup problems are never swallowed.
func (l *Logger) write(level Level, message string) {
	entry := l.formatEntry(level, message)
	if !l.b.IsRunning() {
		_, _ = os.Stdout.Write(entry)
		return
	}
	l.writeChan <- logEntry{log: entry, level: level}
}

// formatEntry renders "2006-01-02 15:04:05.000 [INF] TAG: message",
// optionally with the callsite file:line per the backend's flags.
func (l *Logger) formatEntry(level Level, message string) []byte {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	buf := make([]byte, 0, normalLogSize)
	buf = append(buf, timestamp...)
	buf = append(buf, " ["...)
	buf = append(buf, level.String()...)
	buf = append(buf, "] "...)
	buf = append(buf, l.tag...)
	if l.b.flag&(LogFlagShortFile|LogFlagLongFile) != 0 {
		file, line := callsite(l.b.flag)
		buf = append(buf, ' ')
		buf = append(buf, file...)
		buf = append(buf, ':')
		buf = append(buf, fmt.Sprintf("%d", line)...)
	}
	buf = append(buf, ": "...)
	buf = append(buf, message...)
	buf = append(buf, '\n')
	return buf
}

// callsite returns the file name and line number of the logging callsite.
func callsite(flag uint32) (string, int) {
	// Skip formatEntry, write, printf/print and the exported method.
	_, file, line, ok := runtime.Caller(5)
	if !ok {
		return "<unknown>", 0
	}
	if flag&LogFlagShortFile != 0 {
		short := file
		for i := len(file) - 1; i > 0; i-- {
			if os.IsPathSeparator(file[i]) {
				short = file[i+1:]
				break
			}
		}
		file = short
	}
	return file, line
}

var (
	// backendLog is the shared logging backend every subsystem logger in
	// the process writes to.
	backendLog = NewBackend()

	subsystemsMutex sync.Mutex
	subsystems      = make(map[string]*Logger)
)

// RegisterSubSystem returns a logger for the given subsystem tag, creating
// it on the backend on first use. Packages call this from their log.go to
// get their package-level logger.
func RegisterSubSystem(subsystem string) *Logger {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()

	log, ok := subsystems[subsystem]
	if !ok {
		log = backendLog.Logger(subsystem)
		subsystems[subsystem] = log
	}
	return log
}

// InitLog attaches the log file and error log file to the backend log and
// launches it. It must be called before any log output is wanted on disk.
func InitLog(logFile, errLogFile string) error {
	err := backendLog.AddLogFile(logFile, LevelTrace)
	if err != nil {
		return errors.Errorf("Error adding log file %s as log rotator for level %s: %s",
			logFile, LevelTrace, err)
	}
	err = backendLog.AddLogFile(errLogFile, LevelWarn)
	if err != nil {
		return errors.Errorf("Error adding log file %s as log rotator for level %s: %s",
			errLogFile, LevelWarn, err)
	}
	err = backendLog.AddLogWriter(nopWriteCloser{os.Stdout}, LevelInfo)
	if err != nil {
		return errors.Errorf("Error adding stdout to the logger for level %s: %s",
			LevelInfo, err)
	}
	return backendLog.Run()
}

// Close shuts the shared backend down, flushing anything still queued.
func Close() {
	backendLog.Close()
}

type nopWriteCloser struct {
	*os.File
}

func (nopWriteCloser) Close() error { return nil }

// SetLogLevels sets the logging level for all registered subsystems to the
// given level.
func SetLogLevels(level Level) {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()

	for _, log := range subsystems {
		log.SetLevel(level)
	}
}

// SetLogLevel sets the logging level of the given subsystem.
func SetLogLevel(subsystem string, level Level) error {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()

	log, ok := subsystems[subsystem]
	if !ok {
		return errors.Errorf("unknown subsystem %s", subsystem)
	}
	log.SetLevel(level)
	return nil
}

// SupportedSubsystems returns a sorted slice of the registered subsystems.
func SupportedSubsystems() []string {
	subsystemsMutex.Lock()
	defer subsystemsMutex.Unlock()

	subsystemsList := make([]string, 0, len(subsystems))
	for subsysID := range subsystems {
		subsystemsList = append(subsystemsList, subsysID)
	}
	sort.Strings(subsystemsList)
	return subsystemsList
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and
// set the levels accordingly. An appropriate error is returned if anything
// is invalid. The debug level may either be a global level, or a
// comma-separated list of subsystem=level pairs.
func ParseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		// Validate debug log level.
		level, ok := LevelFromString(debugLevel)
		if !ok {
			return errors.Errorf("The specified debug level [%s] is invalid", debugLevel)
		}

		// Change the logging level for all subsystems.
		SetLogLevels(level)
		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return errors.Errorf("The specified debug level contains an invalid subsystem/level pair [%s]",
				logLevelPair)
		}

		// Extract the specified subsystem and log level.
		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		level, ok := LevelFromString(logLevel)
		if !ok {
			return errors.Errorf("The specified debug level [%s] is invalid", logLevel)
		}

		err := SetLogLevel(subsysID, level)
		if err != nil {
			return errors.Errorf("The specified subsystem [%s] is invalid", subsysID)
		}
	}

	return nil
}
