package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wyfcoding/segtree/rangesum"
	"github.com/wyfcoding/segtree/xerrors"
)

// runScript 逐行执行命令。单行失败时输出 "error: <gRPC 状态码>: ..." 并继续，只有读写失败才返回错误。
func runScript(ctx context.Context, svc *rangesum.Service, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		out, err := execute(ctx, svc, line)
		if err != nil {
			out = formatError(err)
		}
		if out == "" {
			continue
		}
		if _, werr := fmt.Fprintln(w, out); werr != nil {
			return werr
		}
	}
	return scanner.Err()
}

// execute 执行一条命令，update/add 成功时无输出。
func execute(ctx context.Context, svc *rangesum.Service, line string) (string, error) {
	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	ints, err := parseInts(args)
	if err != nil {
		return "", err
	}

	switch cmd {
	case "update", "add":
		if len(ints) != 2 {
			return "", xerrors.InvalidArg(fmt.Sprintf("usage: %s INDEX VALUE", cmd))
		}
		if cmd == "update" {
			return "", svc.Update(ctx, int(ints[0]), ints[1])
		}
		return "", svc.Add(ctx, int(ints[0]), ints[1])
	case "query":
		if len(ints) != 2 {
			return "", xerrors.InvalidArg("usage: query LEFT RIGHT")
		}
		sum, err := svc.Query(ctx, int(ints[0]), int(ints[1]))
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(sum, 10), nil
	case "get":
		if len(ints) != 1 {
			return "", xerrors.InvalidArg("usage: get INDEX")
		}
		v, err := svc.Get(ctx, int(ints[0]))
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(v, 10), nil
	case "total":
		return strconv.FormatInt(svc.Total(ctx), 10), nil
	case "len":
		return strconv.Itoa(svc.Len()), nil
	case "dump":
		values := svc.Snapshot(ctx)
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = strconv.FormatInt(v, 10)
		}
		return strings.Join(parts, " "), nil
	default:
		return "", xerrors.InvalidArg(fmt.Sprintf("unknown command %q", cmd))
	}
}

func parseInts(args []string) ([]int64, error) {
	out := make([]int64, len(args))
	for i, a := range args {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, xerrors.Wrap(err, xerrors.ErrInvalidArg, fmt.Sprintf("invalid integer %q", a))
		}
		out[i] = v
	}
	return out, nil
}

// formatError 按 gRPC 状态渲染一行错误，例如 "error: InvalidArgument: invalid range (left 2 greater than right 0)"。
func formatError(err error) string {
	e, ok := xerrors.FromError(err)
	if !ok {
		return "error: " + err.Error()
	}
	st := e.ToGRPCStatus()
	out := fmt.Sprintf("error: %s: %s", st.Code(), st.Message())
	if e.Detail != "" {
		out += " (" + e.Detail + ")"
	}
	return out
}
