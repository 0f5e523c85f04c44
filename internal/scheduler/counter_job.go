package scheduler

import (
	"context"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"quest-launchpad/pkg/logger"
)

// QuestCounter 按领取记录重算任务的 claims_made
type QuestCounter interface {
	RefreshAllClaimsMade(ctx context.Context) (int64, error)
}

// PlayerRefresher 按领取记录重算玩家经验值
type PlayerRefresher interface {
	RefreshPlayers(ctx context.Context) (int, error)
}

type CounterScheduler struct {
	cron     *cron.Cron
	cronExpr string
	quests   QuestCounter
	players  PlayerRefresher
	running  atomic.Bool
}

func NewCounterScheduler(quests QuestCounter, players PlayerRefresher, cronExpr string) *CounterScheduler {
	if cronExpr == "" {
		cronExpr = "0 */5 * * * *"
	}
	return &CounterScheduler{
		cron:     cron.New(cron.WithSeconds()),
		cronExpr: cronExpr,
		quests:   quests,
		players:  players,
	}
}

func (s *CounterScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronExpr, func() {
		_ = s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.WithFields(map[string]interface{}{"cron": s.cronExpr}).Info("计数刷新任务已启动")
	return nil
}

func (s *CounterScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("计数刷新任务已停止")
}

// RunOnce 重算全部任务计数与玩家经验；上一轮未结束时跳过
func (s *CounterScheduler) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		logger.Debug("上一轮计数刷新尚未结束，跳过")
		return nil
	}
	defer s.running.Store(false)

	quests, err := s.quests.RefreshAllClaimsMade(ctx)
	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("刷新任务领取计数失败")
		return err
	}

	players, err := s.players.RefreshPlayers(ctx)
	if err != nil {
		logger.WithFields(map[string]interface{}{"error": err.Error()}).Error("刷新玩家经验失败")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"quests":  quests,
		"players": players,
	}).Info("计数刷新完成")
	return nil
}
