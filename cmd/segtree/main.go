// Command segtree 加载配置构建区间求和服务，并执行来自标准输入的更新与查询命令。
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/segtree/algorithm"
	"github.com/wyfcoding/segtree/bootstrap"
	"github.com/wyfcoding/segtree/config"
	"github.com/wyfcoding/segtree/logging"
	"github.com/wyfcoding/segtree/rangesum"
	"github.com/wyfcoding/segtree/xerrors"
)

const serviceName = "segtree"

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode 对带错误码的错误以其 gRPC 状态码作为进程退出码（参数错误为 3），其余错误返回 1。
func exitCode(err error) int {
	if e, ok := xerrors.FromError(err); ok {
		return int(e.GRPCCode())
	}
	return 1
}

func treeOptions(lenient bool) []algorithm.Option {
	if lenient {
		return []algorithm.Option{algorithm.WithLenientQuery()}
	}
	return nil
}

// reloadTree 返回配置热更新回调：按新的 tree.values 与 tree.lenient_query 重建线段树。
// tree.values 为空时保留当前元素，只应用查询模式；--lenient 始终优先。
func reloadTree(ctx context.Context, svc *rangesum.Service, lenientFlag bool) func(*config.Config) {
	return func(c *config.Config) {
		nums := c.Tree.Values
		if len(nums) == 0 {
			nums = svc.Snapshot(ctx)
		}
		if err := svc.Reconfigure(ctx, nums, treeOptions(lenientFlag || c.Tree.LenientQuery)...); err != nil {
			logging.Error(ctx, "failed to rebuild tree from reloaded config", "error", err)
		}
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          serviceName,
		Short:        "Range sum queries and point updates over a fixed integer array",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newQueryCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		values     []int64
		lenient    bool
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read update/query commands from stdin and print results",
		Long: `Build the tree from --values (or tree.values in the config file) and execute one command per line:

  update I V   set element I to V
  add I D      add D to element I
  query L R    print the sum of elements in [L, R]
  get I        print element I
  total        print the sum of all elements
  len          print the number of elements
  dump         print all elements`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			boot := bootstrap.New(serviceName, version)
			if err := boot.Initialize(configPath); err != nil {
				return err
			}
			defer boot.Shutdown()
			boot.SetupTracing(ctx)
			m := boot.SetupMetrics()

			nums := boot.Config.Tree.Values
			if cmd.Flags().Changed("values") {
				nums = values
			}
			svc, err := rangesum.New(nums,
				rangesum.WithLogger(boot.Logger),
				rangesum.WithMetrics(m),
				rangesum.WithTreeOptions(treeOptions(lenient || boot.Config.Tree.LenientQuery)...),
			)
			if err != nil {
				return err
			}

			if watch && configPath != "" {
				boot.WatchConfig(reloadTree(ctx, svc, lenient))
			}

			defer logging.LogDuration(ctx, "script", "len", svc.Len())()
			return runScript(ctx, svc, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to TOML config file")
	cmd.Flags().Int64SliceVar(&values, "values", nil, "initial array, e.g. --values 1,3,5")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "treat out-of-bounds query ranges as non-overlapping instead of failing")
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild the tree when tree.values or tree.lenient_query changes in the config file")
	return cmd
}

func newQueryCmd() *cobra.Command {
	var (
		values  []int64
		lenient bool
	)

	cmd := &cobra.Command{
		Use:   "query L R",
		Short: "Print the sum of --values over [L, R]",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := strconv.Atoi(args[0])
			if err != nil {
				return xerrors.Wrap(err, xerrors.ErrInvalidArg, fmt.Sprintf("invalid left %q", args[0]))
			}
			right, err := strconv.Atoi(args[1])
			if err != nil {
				return xerrors.Wrap(err, xerrors.ErrInvalidArg, fmt.Sprintf("invalid right %q", args[1]))
			}

			st, err := algorithm.NewSegmentTree(values, treeOptions(lenient)...)
			if err != nil {
				return err
			}
			sum, err := st.Query(left, right)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sum)
			return err
		},
	}

	cmd.Flags().Int64SliceVar(&values, "values", nil, "array to query, e.g. --values 1,3,5,7,9")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "treat out-of-bounds ranges as non-overlapping instead of failing")
	return cmd
}
