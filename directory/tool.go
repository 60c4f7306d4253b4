package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// DefaultTimeout is the wall-clock budget for a single directory-tool
// invocation (spec.md §4.E/§5).
const DefaultTimeout = 30 * time.Second

// MaxOutputBytes caps each of stdout/stderr per invocation.
const MaxOutputBytes = 10 * 1 << 20 // 10 MiB

// ErrOutputOverflow is returned by a Runner when a command stream exceeded
// MaxOutputBytes. Any nonzero exit, timeout, or buffer overflow is a
// failure (spec.md §4.E), so run() always forces a failed Result for it.
var ErrOutputOverflow = errors.New("directory: command output exceeded stream cap")

// sensitiveKeys are never written into an audit row; their values are
// replaced with redactionMarker before serialization (spec.md invariant 7).
var sensitiveKeys = map[string]bool{
	"accountpassword": true,
	"password":        true,
	"secret":          true,
	"token":           true,
}

const redactionMarker = "***REDACTED***"

// Redact returns a copy of params with sensitive values replaced, safe to
// hand to an audit sink. Matching is case-insensitive on the key.
func Redact(params Params) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if sensitiveKeys[strings.ToLower(k)] {
			out[k] = redactionMarker
			continue
		}
		out[k] = v
	}
	return out
}

// AuditEntry is one row this bridge's audit log records (spec.md's audit
// row, §3).
type AuditEntry struct {
	Cmdlet     string
	Parameters map[string]any // already redacted
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMs int64
	ScimUserID *string
}

// AuditRecorder persists AuditEntry rows. Implementations must be
// fire-and-forget from the executor's point of view: Record's own failure
// is the recorder's problem to log, never the caller's to handle (spec.md
// §4.E/§5).
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// Runner executes a single command and returns its captured output. It is
// the seam tests substitute a fake for, the same pattern
// gravitational/teleport's kinit package uses to test PKINIT without a
// real kinit binary on the test host.
type Runner interface {
	Run(ctx context.Context, exe string, args []string) (stdout, stderr string, exitCode int, err error)
}

// execRunner is the production Runner: it shells out to exe directly,
// never through an intermediate shell interpreter, honoring ctx's
// deadline.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, exe string, args []string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, exe, args...)

	var stdout, stderr limitedBuffer
	stdout.limit = MaxOutputBytes
	stderr.limit = MaxOutputBytes
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	if ctx.Err() == context.DeadlineExceeded {
		return stdout.String(), "timed out after " + DefaultTimeout.String(), -1, ctx.Err()
	}

	if stdout.overflow || stderr.overflow {
		msg := stderr.String()
		if msg != "" {
			msg += "; "
		}
		msg += "output exceeded " + fmt.Sprint(MaxOutputBytes) + " byte stream cap"
		return stdout.String(), msg, -1, ErrOutputOverflow
	}

	return stdout.String(), stderr.String(), exitCode, nil
}

// limitedBuffer caps how much output a single command stream can
// accumulate, so a runaway or malicious tool invocation cannot exhaust
// memory (spec.md §4.E's 10 MiB per-stream cap).
type limitedBuffer struct {
	buf      bytes.Buffer
	limit    int64
	overflow bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if int64(b.buf.Len()) >= b.limit {
		b.overflow = true
		return len(p), nil // pretend we consumed it; drop the excess
	}
	remaining := b.limit - int64(b.buf.Len())
	if int64(len(p)) > remaining {
		b.buf.Write(p[:remaining])
		b.overflow = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string { return b.buf.String() }

var _ io.Writer = (*limitedBuffer)(nil)

// Executor renders and runs directory-tool invocations.
type Executor struct {
	Exe             string // e.g. "powershell.exe"
	Timeout         time.Duration
	DefaultPassword string
	Runner          Runner
	Audit           AuditRecorder
	Logger          kitlog.Logger
}

// NewExecutor builds a production Executor.
func NewExecutor(exe, defaultPassword string, audit AuditRecorder, logger kitlog.Logger) *Executor {
	return &Executor{
		Exe:             exe,
		Timeout:         DefaultTimeout,
		DefaultPassword: defaultPassword,
		Runner:          execRunner{},
		Audit:           audit,
		Logger:          logger,
	}
}

// Create provisions a new AD user: sets a password via the tool's
// secure-string conversion, forces ChangePasswordAtLogon:false, and
// requests the created object back for GUID extraction (spec.md §4.E).
func (e *Executor) Create(ctx context.Context, params Params, scimUserID string) Result {
	script := "New-ADUser " + renderArgs(params) +
		" -AccountPassword (ConvertTo-SecureString -AsPlainText -Force -String " + psQuote(e.DefaultPassword) + ")" +
		" -ChangePasswordAtLogon $false -PassThru | ConvertTo-Json -Compress"

	// The audit entry carries AccountPassword so Redact has something to
	// scrub — the rendered script itself is never persisted.
	auditParams := make(Params, len(params)+1)
	for k, v := range params {
		auditParams[k] = v
	}
	auditParams[AccountPassword] = e.DefaultPassword

	return e.run(ctx, "New-ADUser", script, auditParams, scimUserID)
}

// Update changes attributes on an existing AD user. identity is the AD
// object GUID when known, else the sAMAccountName.
func (e *Executor) Update(ctx context.Context, identity string, params Params, scimUserID string) Result {
	script := "Set-ADUser -Identity " + psQuote(identity) + " " + renderArgs(params) +
		" -PassThru | ConvertTo-Json -Compress"
	return e.run(ctx, "Set-ADUser", script, params, scimUserID)
}

// Delete deprovisions identity, non-interactively.
func (e *Executor) Delete(ctx context.Context, identity string, scimUserID string) Result {
	script := "Remove-ADUser -Identity " + psQuote(identity) + " -Confirm:$false"
	return e.run(ctx, "Remove-ADUser", script, Params{"Identity": identity}, scimUserID)
}

// Read performs a full attribute read-back. It returns the parsed record,
// or nil on any failure — parse error, nonzero exit, or timeout — per
// spec.md §4.E; callers that treat this as best-effort don't need to
// inspect an error at all.
func (e *Executor) Read(ctx context.Context, identity string, scimUserID string) map[string]any {
	script := "Get-ADUser -Identity " + psQuote(identity) +
		" -Properties DisplayName,GivenName,Surname,EmailAddress,Enabled,EmployeeID | ConvertTo-Json -Compress"
	result := e.run(ctx, "Get-ADUser", script, Params{"Identity": identity}, scimUserID)
	if !result.Success() {
		return nil
	}
	return result.Object
}

func (e *Executor) run(ctx context.Context, cmdlet, script string, params Params, scimUserID string) Result {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, runErr := e.runner().Run(runCtx, e.Exe, []string{"-NoProfile", "-NonInteractive", "-Command", script})
	duration := time.Since(start)

	if runErr != nil && stderr == "" {
		stderr = runErr.Error()
	}
	if runErr != nil && exitCode == 0 {
		exitCode = -1
	}
	// A stream that hit its cap is a failure even if the process itself
	// exited zero: truncated output cannot be trusted for GUID extraction
	// or an accurate audit record (spec.md §4.E).
	if errors.Is(runErr, ErrOutputOverflow) {
		exitCode = -1
	}

	result := Result{
		ExitCode:   exitCode,
		Stdout:     strings.TrimSpace(stdout),
		Stderr:     stderr,
		DurationMs: duration.Milliseconds(),
	}

	if exitCode == 0 && result.Stdout != "" {
		var obj map[string]any
		if err := json.Unmarshal([]byte(result.Stdout), &obj); err == nil {
			result.Object = obj
		}
	}

	level.Info(e.Logger).Log("msg", "directory command executed", "cmdlet", cmdlet, "exit_code", exitCode, "duration_ms", result.DurationMs)
	if exitCode != 0 {
		level.Error(e.Logger).Log("msg", "directory command failed", "cmdlet", cmdlet, "stderr", stderr)
	}

	e.recordAudit(ctx, cmdlet, params, result, scimUserID)

	return result
}

func (e *Executor) recordAudit(ctx context.Context, cmdlet string, params Params, result Result, scimUserID string) {
	if e.Audit == nil {
		return
	}
	var idPtr *string
	if scimUserID != "" {
		idPtr = &scimUserID
	}
	e.Audit.Record(ctx, AuditEntry{
		Cmdlet:     cmdlet,
		Parameters: Redact(params),
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		ExitCode:   result.ExitCode,
		DurationMs: result.DurationMs,
		ScimUserID: idPtr,
	})
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

func (e *Executor) runner() Runner {
	if e.Runner != nil {
		return e.Runner
	}
	return execRunner{}
}

// paramOrder fixes the rendering order of directory parameters so that
// generated scripts (and their audit rows) are deterministic and
// reviewable rather than varying with Go's randomized map iteration.
var paramOrder = []string{
	SamAccountName, UserPrincipalName, GivenName, Surname, EmailAddress,
	DisplayName, Name, Enabled, EmployeeID, Path,
}

// renderArgs renders params as PowerShell named arguments in paramOrder,
// followed by any key not in paramOrder in sorted order, skipping
// AccountPassword (handled separately by Create).
func renderArgs(params Params) string {
	keys := make([]string, 0, len(params))
	for _, k := range paramOrder {
		if _, ok := params[k]; ok {
			keys = append(keys, k)
		}
	}
	// Preserve determinism for any caller-supplied key outside paramOrder
	// (there shouldn't be any, since the mapper only emits recognized
	// keys, but sort rather than silently drop).
	var extra []string
	for k := range params {
		if k == AccountPassword {
			continue
		}
		known := false
		for _, o := range paramOrder {
			if o == k {
				known = true
				break
			}
		}
		if !known {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "-%s %s", k, renderValue(params[k]))
	}
	return b.String()
}

// renderValue renders a single parameter value as a PowerShell literal.
// Booleans render as the two literals the tool recognizes; everything
// else is treated as a string and single-quote escaped.
func renderValue(v any) string {
	switch val := v.(type) {
	case bool:
		if val {
			return "$true"
		}
		return "$false"
	case string:
		return psQuote(val)
	default:
		return psQuote(fmt.Sprintf("%v", val))
	}
}

// psQuote wraps s in single quotes, doubling any embedded single quote —
// PowerShell's own escaping rule for single-quoted strings — so that
// attacker-controlled attribute values (a SCIM userName, say) can never
// break out of the literal and inject additional script text.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
