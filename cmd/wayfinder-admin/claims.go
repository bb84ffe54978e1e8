package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes owned by the trip service and the gateway discoverer. The CLI
// only inspects and deletes; it never writes these keys.
const (
	runClaimKeyPrefix  = "wayfinder:run:"
	toolCacheKeyPrefix = "wayfinder:gateway:tools:"
)

type listClaimsOptions struct {
	Owner string
	Limit int
}

type clearClaimsOptions struct {
	Owner   string
	Request string
	All     bool
	DryRun  bool
	Yes     bool
}

type clearToolCacheOptions struct {
	DryRun bool
	Yes    bool
}

func runListClaims(cmdCtx *commandContext, args []string) error {
	opts, err := parseListClaimsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	redisClient, err := openRedisOnly(cmdCtx)
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	pattern := runClaimKeyPrefix + "*"
	cmdCtx.Logger.Info("scanning redis", "pattern", pattern)

	resp, err := inspectRunClaims(&inspectRunClaimsRequest{
		Ctx:     ctx,
		Client:  redisClient,
		Logger:  cmdCtx.Logger,
		Options: opts,
	})
	if err != nil {
		return err
	}

	return printClaimEntries(resp, opts)
}

func runClearClaims(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearClaimsFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(claimsClearConfirmOptions{opts}, "clear execution claims"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	redisClient, err := openRedisOnly(cmdCtx)
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	stats, err := deleteKeysByPattern(&redisKeyDeleteRequest{
		Ctx:      ctx,
		Logger:   cmdCtx.Logger,
		Redis:    redisClient,
		Pattern:  buildClaimPattern(opts),
		DryRun:   opts.DryRun,
		BatchCap: 1000,
	})
	if err != nil {
		return err
	}

	if stats.total == 0 {
		if writeErr := writeln(os.Stdout, "No execution claims found in Redis"); writeErr != nil {
			return fmt.Errorf("print claim summary: %w", writeErr)
		}
		return nil
	}

	if opts.DryRun {
		return printRedisDeleteDryRun(stats)
	}

	return printRedisDeleteSummary("execution claim", stats)
}

func runClearToolCache(cmdCtx *commandContext, args []string) error {
	opts, err := parseClearToolCacheFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(toolCacheConfirmOptions{opts}, "clear tool descriptor cache"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	redisClient, err := openRedisOnly(cmdCtx)
	if err != nil {
		return err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return fmt.Errorf("print redis availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	stats, err := deleteKeysByPattern(&redisKeyDeleteRequest{
		Ctx:      ctx,
		Logger:   cmdCtx.Logger,
		Redis:    redisClient,
		Pattern:  toolCacheKeyPrefix + "*",
		DryRun:   opts.DryRun,
		BatchCap: 1000,
	})
	if err != nil {
		return err
	}

	if stats.total == 0 {
		if writeErr := writeln(os.Stdout, "No cached tool descriptors found in Redis"); writeErr != nil {
			return fmt.Errorf("print tool cache summary: %w", writeErr)
		}
		return nil
	}

	if opts.DryRun {
		return printRedisDeleteDryRun(stats)
	}

	return printRedisDeleteSummary("descriptor cache", stats)
}

// openRedisOnly connects a Redis client without a database connection.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func openRedisOnly(cmdCtx *commandContext) (redis.UniversalClient, error) {
	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantDB:    false,
		WantRedis: true,
	})
	if err != nil {
		return nil, err
	}
	return redisClient, nil
}

func parseListClaimsFlags(args []string) (listClaimsOptions, error) {
	fs := flag.NewFlagSet("list-claims", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listClaimsOptions
	fs.StringVar(&opts.Owner, "owner", "", "Filter claims by owner ID substring")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum entries to display (0 for unlimited)")

	if err := fs.Parse(args); err != nil {
		return listClaimsOptions{}, err
	}

	opts.Owner = strings.TrimSpace(opts.Owner)
	if opts.Limit < 0 {
		return listClaimsOptions{}, errors.New("--limit must be >= 0")
	}

	return opts, nil
}

func parseClearClaimsFlags(args []string) (clearClaimsOptions, error) {
	fs := flag.NewFlagSet("clear-claims", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearClaimsOptions
	fs.StringVar(&opts.Owner, "owner", "", "Owner ID whose claims to clear (required unless --all)")
	fs.StringVar(&opts.Request, "request", "", "Optional request ID filter (requires --owner)")
	fs.BoolVar(&opts.All, "all", false, "Clear execution claims for all owners")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return clearClaimsOptions{}, err
	}

	opts.Owner = strings.TrimSpace(opts.Owner)
	opts.Request = strings.TrimSpace(opts.Request)

	if err := validateClearClaimsOptions(opts); err != nil {
		return clearClaimsOptions{}, err
	}

	return opts, nil
}

func validateClearClaimsOptions(opts clearClaimsOptions) error {
	if opts.All {
		if opts.Owner != "" || opts.Request != "" {
			return errors.New("--all cannot be combined with owner or request filters")
		}
		return nil
	}
	if opts.Owner == "" {
		return errors.New("--owner is required unless --all is provided")
	}
	return nil
}

func parseClearToolCacheFlags(args []string) (clearToolCacheOptions, error) {
	fs := flag.NewFlagSet("clear-tool-cache", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts clearToolCacheOptions
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return clearToolCacheOptions{}, err
	}

	return opts, nil
}

func buildClaimPattern(opts clearClaimsOptions) string {
	if opts.All {
		return runClaimKeyPrefix + "*"
	}
	if opts.Request != "" {
		return runClaimKeyPrefix + opts.Owner + ":" + opts.Request
	}
	return runClaimKeyPrefix + opts.Owner + ":*"
}

type claimsClearConfirmOptions struct {
	opts clearClaimsOptions
}

func (c claimsClearConfirmOptions) IsDryRun() bool { return c.opts.DryRun }
func (c claimsClearConfirmOptions) IsYes() bool    { return c.opts.Yes }
func (c claimsClearConfirmOptions) GetWarning() string {
	return "WARNING: this will release all execution claims; " +
		"concurrent duplicate submissions stop being blocked until the claims are retaken."
}

func (c claimsClearConfirmOptions) GetTarget() string {
	if c.opts.All {
		return ""
	}
	target := fmt.Sprintf("owner %q", c.opts.Owner)
	if c.opts.Request != "" {
		target += fmt.Sprintf(", request %q", c.opts.Request)
	}
	return target
}

type toolCacheConfirmOptions struct {
	opts clearToolCacheOptions
}

func (t toolCacheConfirmOptions) IsDryRun() bool { return t.opts.DryRun }
func (t toolCacheConfirmOptions) IsYes() bool    { return t.opts.Yes }
func (t toolCacheConfirmOptions) GetWarning() string {
	return "WARNING: this will drop cached gateway tool descriptors; " +
		"the next submission re-discovers tools from the gateway."
}
func (t toolCacheConfirmOptions) GetTarget() string { return "" }

type inspectRunClaimsRequest struct {
	Ctx     context.Context
	Client  redis.UniversalClient
	Logger  *slog.Logger
	Options listClaimsOptions
}

type claimEntry struct {
	Key     string
	Owner   string
	Request string
	TTL     time.Duration
}

type inspectRunClaimsResponse struct {
	Entries []claimEntry
	Total   int
}

func inspectRunClaims(req *inspectRunClaimsRequest) (inspectRunClaimsResponse, error) {
	if req == nil {
		return inspectRunClaimsResponse{}, errors.New("claim inspect request is required")
	}

	collector := claimCollector{limit: req.Options.Limit}
	iter := req.Client.Scan(req.Ctx, 0, runClaimKeyPrefix+"*", 1000).Iterator()
	for iter.Next(req.Ctx) {
		if err := collector.addKey(req, iter.Val()); err != nil {
			return inspectRunClaimsResponse{}, err
		}
		if collector.truncated {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return inspectRunClaimsResponse{}, fmt.Errorf("redis scan: %w", err)
	}

	return collector.result(), nil
}

type claimCollector struct {
	entries   []claimEntry
	total     int
	limit     int
	truncated bool
}

func (c *claimCollector) addKey(req *inspectRunClaimsRequest, key string) error {
	owner, request, err := parseRunClaimKey(key)
	if err != nil {
		if req.Logger != nil {
			req.Logger.Warn("skipping execution claim key", "key", key, "error", err)
		}
		return nil
	}

	if req.Options.Owner != "" && !strings.Contains(owner, req.Options.Owner) {
		return nil
	}

	c.total++
	if c.limit > 0 && len(c.entries) >= c.limit {
		c.truncated = true
		return nil
	}

	ttl, err := req.Client.TTL(req.Ctx, key).Result()
	if err != nil {
		return fmt.Errorf("query redis ttl for key %q: %w", key, err)
	}

	c.entries = append(c.entries, claimEntry{
		Key:     key,
		Owner:   owner,
		Request: request,
		TTL:     ttl,
	})
	return nil
}

func (c *claimCollector) result() inspectRunClaimsResponse {
	sort.Slice(c.entries, func(i, j int) bool {
		if c.entries[i].Owner == c.entries[j].Owner {
			return c.entries[i].Request < c.entries[j].Request
		}
		return c.entries[i].Owner < c.entries[j].Owner
	})
	return inspectRunClaimsResponse{
		Entries: c.entries,
		Total:   c.total,
	}
}

var errUnexpectedClaimKeyFormat = errors.New("unexpected execution claim key format")

// parseRunClaimKey parses "wayfinder:run:<owner>:<request>" into (owner, request).
// SplitN keeps any colons inside the request id.
func parseRunClaimKey(key string) (string, string, error) {
	parts := strings.SplitN(key, ":", 4)
	if len(parts) < 4 {
		return "", "", errUnexpectedClaimKeyFormat
	}
	if parts[0] != "wayfinder" || parts[1] != "run" {
		return "", "", errUnexpectedClaimKeyFormat
	}
	return parts[2], parts[3], nil
}

func printClaimEntries(resp inspectRunClaimsResponse, opts listClaimsOptions) error {
	displayLimit := max(opts.Limit, 0)
	if err := writef(os.Stdout, "\nExecution claims"); err != nil {
		return fmt.Errorf("write claim header: %w", err)
	}
	if displayLimit > 0 {
		if err := writef(os.Stdout, " (showing up to %d)", displayLimit); err != nil {
			return fmt.Errorf("write claim limit: %w", err)
		}
	}
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write claim header newline: %w", err)
	}

	if len(resp.Entries) == 0 {
		if err := writeln(os.Stdout, "  (no keys matched)"); err != nil {
			return fmt.Errorf("write claim empty message: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "OWNER\tREQUEST\tTTL\tKEY"); err != nil {
		return fmt.Errorf("write claim header row: %w", err)
	}
	for _, entry := range resp.Entries {
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\n",
			entry.Owner,
			entry.Request,
			formatRedisTTL(entry.TTL),
			entry.Key,
		); err != nil {
			return fmt.Errorf("write claim entry: %w", err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush claim table: %w", err)
	}

	if err := writef(os.Stdout, "Total keys matched: %d\n", resp.Total); err != nil {
		return fmt.Errorf("write claim total: %w", err)
	}
	if opts.Limit > 0 && resp.Total > len(resp.Entries) {
		if err := writeln(os.Stdout, "More keys available; increase --limit to view additional entries."); err != nil {
			return fmt.Errorf("write claim more-keys message: %w", err)
		}
	}
	return nil
}

type redisKeyDeleteRequest struct {
	Ctx      context.Context
	Logger   *slog.Logger
	Redis    redis.UniversalClient
	Pattern  string
	DryRun   bool
	BatchCap int
}

type redisKeyDeleteStats struct {
	total    int
	deleted  int64
	failures int
}

func deleteKeysByPattern(req *redisKeyDeleteRequest) (redisKeyDeleteStats, error) {
	if req == nil || req.Pattern == "" {
		return redisKeyDeleteStats{}, errors.New("delete pattern is required")
	}

	batchCap := req.BatchCap
	if batchCap <= 0 {
		batchCap = 1000
	}

	if req.Logger != nil {
		req.Logger.Info("scanning redis", "pattern", req.Pattern, "dry_run", req.DryRun)
	}

	stats := redisKeyDeleteStats{}
	iter := req.Redis.Scan(req.Ctx, 0, req.Pattern, 100).Iterator()
	batch := make([]string, 0, batchCap)

	for iter.Next(req.Ctx) {
		stats.total++
		batch = append(batch, iter.Val())

		if len(batch) == batchCap {
			req.flushBatch(batch, &stats)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("redis scan: %w", err)
	}

	req.flushBatch(batch, &stats)
	return stats, nil
}

func (req *redisKeyDeleteRequest) flushBatch(batch []string, stats *redisKeyDeleteStats) {
	if len(batch) == 0 {
		return
	}
	if req.DryRun {
		stats.deleted += int64(len(batch))
		if req.Logger != nil {
			req.Logger.Info("dry-run skipping redis delete", "count", len(batch))
		}
		return
	}
	n, delErr := req.Redis.Del(req.Ctx, batch...).Result()
	if delErr != nil {
		stats.failures++
		if req.Logger != nil {
			req.Logger.Error("failed to delete redis keys", "count", len(batch), "error", delErr)
		}
		if err := writef(os.Stdout, "Failed to delete %d keys: %v\n", len(batch), delErr); err != nil &&
			req.Logger != nil {
			req.Logger.Error("stdout write for redis delete failure failed", "error", err)
		}
		return
	}
	stats.deleted += n
}

func printRedisDeleteDryRun(stats redisKeyDeleteStats) error {
	if err := writef(os.Stdout, "Dry-run: would delete %d/%d keys\n", stats.deleted, stats.total); err != nil {
		return fmt.Errorf("print delete dry run: %w", err)
	}
	return nil
}

func printRedisDeleteSummary(noun string, stats redisKeyDeleteStats) error {
	if err := writef(os.Stdout, "Processed %d %s keys\n", stats.total, noun); err != nil {
		return fmt.Errorf("print delete processed: %w", err)
	}
	if err := writef(os.Stdout, "Deleted %d/%d keys\n", stats.deleted, stats.total); err != nil {
		return fmt.Errorf("print delete count: %w", err)
	}
	if stats.failures == 0 {
		return nil
	}

	if err := writef(os.Stdout, "Failed batches: %d\n", stats.failures); err != nil {
		return fmt.Errorf("print delete failures: %w", err)
	}
	return nil
}

func formatRedisTTL(ttl time.Duration) string {
	if ttl == -1 {
		return "no expiry"
	}
	if ttl == -2 {
		return "missing"
	}
	if ttl < 0 {
		return ttl.String()
	}
	return ttl.Round(time.Millisecond).String()
}
