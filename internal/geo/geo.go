package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// EarthRadiusMeters 地球平均半径
const EarthRadiusMeters = 6371000.0

// MaxClockDrift 设备时钟允许超前服务端的最大时长
const MaxClockDrift = 30 * time.Second

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrTimeout             = errors.New("location request timed out")
	ErrPositionUnavailable = errors.New("location unavailable")
	ErrStalePosition       = errors.New("location fix is stale")
)

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Position 一次设备定位结果
type Position struct {
	Point
	AccuracyMeters float64   `json:"accuracy"`
	Timestamp      time.Time `json:"timestamp"`
}

// Distance 使用 haversine 公式计算两点之间的大圆距离（米）
func Distance(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

// Locator 单次高精度定位
type Locator interface {
	Locate(ctx context.Context) (Position, error)
}

// Acquire 在超时时间内获取一次定位
// maxAge 为 0 时不接受早于请求时刻的定位结果；没有时间戳或时间超前的定位同样拒绝
func Acquire(ctx context.Context, locator Locator, timeout, maxAge time.Duration, now func() time.Time) (Position, error) {
	if now == nil {
		now = time.Now
	}
	requestedAt := now()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	pos, err := locator.Locate(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Position{}, ErrTimeout
		}
		return Position{}, err
	}
	if ctx.Err() != nil {
		return Position{}, ErrTimeout
	}

	if !pos.Valid() {
		return Position{}, fmt.Errorf("%w: coordinates out of range", ErrPositionUnavailable)
	}

	switch {
	case pos.Timestamp.IsZero():
		return Position{}, fmt.Errorf("%w: missing timestamp", ErrStalePosition)
	case pos.Timestamp.Before(requestedAt.Add(-maxAge)):
		return Position{}, ErrStalePosition
	case pos.Timestamp.After(requestedAt.Add(MaxClockDrift)):
		return Position{}, fmt.Errorf("%w: fix dated in the future", ErrStalePosition)
	}

	return pos, nil
}

// ReportedLocator 把客户端上报的定位（或失败原因）适配为 Locator
type ReportedLocator struct {
	Position Position
	Failure  string
}

func (l ReportedLocator) Locate(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}

	switch l.Failure {
	case "":
		return l.Position, nil
	case "permission_denied":
		return Position{}, ErrPermissionDenied
	case "timeout":
		return Position{}, ErrTimeout
	default:
		return Position{}, ErrPositionUnavailable
	}
}
