// Copyright 2024 Northern.tech AS
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package iscsi

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mendersoftware/go-lib-micro/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	lld = "iscsi"
	lun = "1"

	defaultTimeout = 10 * time.Second
)

// Target is a target as configured in the target daemon
type Target struct {
	TID         int
	IQN         string
	BackingPath string
	Initiators  []string
}

// Client drives the iSCSI target daemon
//
//go:generate ../../utils/mockgen.sh
type Client interface {
	// CreateTarget creates the target, its LUN and an ACL admitting only
	// the given initiators.
	CreateTarget(ctx context.Context, target Target) error
	DeleteTarget(ctx context.Context, tid int) error
	ListTargets(ctx context.Context) ([]Target, error)
}

// Runner executes a command and returns its combined output
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Config configures the tgtadm client
type Config struct {
	Path    string
	Timeout time.Duration
	Runner  Runner
}

// NewConfig returns a Config running tgtadm from PATH
func NewConfig() *Config {
	return &Config{
		Path:    "tgtadm",
		Timeout: defaultTimeout,
		Runner:  ExecRunner,
	}
}

// SetPath sets the tgtadm binary
func (c *Config) SetPath(path string) *Config {
	c.Path = path
	return c
}

// SetTimeout sets the per-call timeout
func (c *Config) SetTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// SetRunner replaces the command runner
func (c *Config) SetRunner(runner Runner) *Config {
	c.Runner = runner
	return c
}

type tgtadm struct {
	path    string
	timeout time.Duration
	run     Runner
}

// NewClient returns a Client driving tgtadm
func NewClient(conf ...*Config) Client {
	c := NewConfig()
	for _, cc := range conf {
		if cc == nil {
			continue
		}
		if cc.Path != "" {
			c.Path = cc.Path
		}
		if cc.Timeout > 0 {
			c.Timeout = cc.Timeout
		}
		if cc.Runner != nil {
			c.Runner = cc.Runner
		}
	}
	return &tgtadm{path: c.Path, timeout: c.Timeout, run: c.Runner}
}

func (t *tgtadm) exec(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args = append([]string{"--lld", lld}, args...)
	start := time.Now()
	out, err := t.run(ctx, t.path, args...)
	fields := logrus.Fields{
		"command":  t.path,
		"args":     strings.Join(args, " "),
		"duration": time.Since(start).String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			fields["exit_code"] = exitErr.ExitCode()
		}
		fields["timed_out"] = ctx.Err() == context.DeadlineExceeded
		log.FromContext(ctx).WithFields(fields).Warnf("tgtadm failed: %s",
			strings.TrimSpace(string(out)))
		if ctx.Err() == context.DeadlineExceeded {
			return out, errors.Wrapf(ctx.Err(), "tgtadm timed out after %s", t.timeout)
		}
		return out, errors.Wrapf(err, "tgtadm: %s", strings.TrimSpace(string(out)))
	}
	log.FromContext(ctx).WithFields(fields).Debug("tgtadm")
	return out, nil
}

func (t *tgtadm) CreateTarget(ctx context.Context, target Target) error {
	tid := strconv.Itoa(target.TID)
	if _, err := t.exec(ctx, "--mode", "target", "--op", "new",
		"--tid", tid, "--targetname", target.IQN); err != nil {
		return errors.Wrap(err, "failed to create target")
	}
	if _, err := t.exec(ctx, "--mode", "logicalunit", "--op", "new",
		"--tid", tid, "--lun", lun, "--backing-store", target.BackingPath); err != nil {
		_ = t.DeleteTarget(ctx, target.TID)
		return errors.Wrap(err, "failed to attach backing store")
	}
	for _, initiator := range target.Initiators {
		if _, err := t.exec(ctx, "--mode", "target", "--op", "bind",
			"--tid", tid, "--initiator-name", initiator); err != nil {
			_ = t.DeleteTarget(ctx, target.TID)
			return errors.Wrap(err, "failed to bind initiator")
		}
	}
	return nil
}

func (t *tgtadm) DeleteTarget(ctx context.Context, tid int) error {
	_, err := t.exec(ctx, "--mode", "target", "--op", "delete", "--force",
		"--tid", strconv.Itoa(tid))
	return errors.Wrap(err, "failed to delete target")
}

func (t *tgtadm) ListTargets(ctx context.Context) ([]Target, error) {
	out, err := t.exec(ctx, "--mode", "target", "--op", "show")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list targets")
	}
	return ParseTargets(out)
}

// ParseTargets parses the output of "tgtadm --mode target --op show"
func ParseTargets(out []byte) ([]Target, error) {
	var (
		targets []Target
		cur     *Target
		inACL   bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "Target ") {
			head := strings.SplitN(strings.TrimPrefix(raw, "Target "), ":", 2)
			if len(head) != 2 {
				return nil, errors.Errorf("malformed target line %q", raw)
			}
			tid, err := strconv.Atoi(strings.TrimSpace(head[0]))
			if err != nil {
				return nil, errors.Wrapf(err, "malformed target id in %q", raw)
			}
			targets = append(targets, Target{TID: tid, IQN: strings.TrimSpace(head[1])})
			cur = &targets[len(targets)-1]
			inACL = false
			continue
		}
		if cur == nil || line == "" {
			continue
		}
		switch {
		case strings.HasSuffix(line, "information:"):
			inACL = line == "ACL information:"
		case strings.HasPrefix(line, "Backing store path:"):
			p := strings.TrimSpace(strings.TrimPrefix(line, "Backing store path:"))
			if p != "None" && p != "" {
				cur.BackingPath = p
			}
		case inACL:
			cur.Initiators = append(cur.Initiators, line)
		}
	}
	return targets, errors.Wrap(scanner.Err(), "failed to read tgtadm output")
}

// FindTarget returns the target with the given IQN
func FindTarget(targets []Target, iqn string) *Target {
	for i := range targets {
		if targets[i].IQN == iqn {
			return &targets[i]
		}
	}
	return nil
}

// NextTID returns the lowest target id not in use
func NextTID(targets []Target) int {
	used := make(map[int]bool, len(targets))
	for _, t := range targets {
		used[t.TID] = true
	}
	tid := 1
	for used[tid] {
		tid++
	}
	return tid
}
