package treasury

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	xerrors "DustMite-Agent/internal/errors"
	"DustMite-Agent/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Runner 是调度器驱动的最小接口。
type Runner interface {
	RunCycle(ctx context.Context) (*CycleReport, error)
}

// Scheduler 按固定间隔驱动决策周期。内部用单飞标记保证同一时刻
// 只有一个周期在执行: 定时触发与手动触发共用同一把闸门, 手动触发
// 在周期进行中时被直接拒绝而不是排队。
type Scheduler struct {
	runner   Runner
	interval time.Duration
	cron     *cron.Cron
	running  atomic.Bool
}

// NewScheduler 创建调度器。interval 非法时回退为 5 分钟。
func NewScheduler(runner Runner, interval time.Duration) (*Scheduler, error) {
	if runner == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "缺少周期执行器")
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{runner: runner, interval: interval}, nil
}

// Start 启动定时调度。ctx 取消后不再开始新的周期。
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron != nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "调度器已启动")
	}

	s.cron = cron.New()
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		s.tick(ctx)
	}); err != nil {
		return xerrors.Wrap(xerrors.CodeInitializationFailure, err, "注册调度任务失败")
	}

	s.cron.Start()
	logger.L().Info("调度器已启动", "interval", s.interval.String())
	return nil
}

// Stop 停止调度并等待进行中的周期结束。
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	logger.L().Info("调度器已停止")
}

// TriggerNow 立刻执行一个周期。已有周期在执行时返回 CodeCycleInFlight。
func (s *Scheduler) TriggerNow(ctx context.Context) (*CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, xerrors.New(xerrors.CodeCycleInFlight, "")
	}
	defer s.running.Store(false)

	return s.runner.RunCycle(ctx)
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.TriggerNow(ctx)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeCycleInFlight {
			logger.L().Warn("上一周期尚未结束, 跳过本次调度")
		}
		// 其余错误在周期内部已记录与告警。
		return
	}
	logger.L().Info("定时周期完成",
		"cycle_id", report.CycleID,
		"outcome", report.Outcome,
		"action", report.Action,
	)
}
