package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"milletsmon/internal/backend"
	"milletsmon/internal/model"
	"milletsmon/pkg/metrics"
	"milletsmon/pkg/otel"
)

// ActivitySource 按类型提供活动记录（store.ActivityStores 实现）
type ActivitySource interface {
	Activities(ctx context.Context, id backend.Identity, kind model.Kind, force bool) ([]model.Activity, error)
}

// Filter 报表筛选条件；零值表示不过滤。From / To 按日期计算，To 当天全天包含在内。
type Filter struct {
	District string     `json:"district,omitempty"`
	Kind     model.Kind `json:"kind,omitempty"`
	From     time.Time  `json:"from,omitempty"`
	To       time.Time  `json:"to,omitempty"`
}

// Row 某类活动在某地区的汇总；District 为空表示该类型合计
type Row struct {
	Kind          model.Kind `json:"kind"`
	District      string     `json:"district"`
	Count         int        `json:"count"`
	Target        int        `json:"target"`
	Achieved      int        `json:"achieved"`
	Progress      float64    `json:"progress"`
	Male          int        `json:"male"`
	Female        int        `json:"female"`
	Beneficiaries int        `json:"beneficiaries"`
}

type Report struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Filter      Filter    `json:"filter"`
	Rows        []Row     `json:"rows"`
	Totals      []Row     `json:"totals"`
	GeneratedBy string    `json:"generated_by"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Builder 从活动缓存汇总 target / achieved
type Builder struct {
	source ActivitySource
	logger *zap.Logger
	now    func() time.Time
}

func NewBuilder(source ActivitySource, logger *zap.Logger) *Builder {
	return &Builder{source: source, logger: logger, now: time.Now}
}

// Build 以调用者身份并发拉取各类型活动后汇总。任一类型失败则整体失败。
func (b *Builder) Build(ctx context.Context, id backend.Identity, title, generatedBy string, f Filter) (*Report, error) {
	ctx, span := otel.StartSpan(ctx, "report.Build")
	defer span.End()

	kinds := model.ActivityKinds
	if f.Kind != "" {
		if _, ok := model.ParseKind(string(f.Kind)); !ok {
			return nil, fmt.Errorf("unknown activity kind %q", f.Kind)
		}
		kinds = []model.Kind{f.Kind}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("invalid date range: to is before from")
	}

	results := make([][]model.Activity, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			acts, err := b.source.Activities(gctx, id, kind, false)
			if err != nil {
				return fmt.Errorf("load %s: %w", kind, err)
			}
			results[i] = acts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.IncrementReportGenerated("error")
		return nil, err
	}

	r := &Report{
		Title:       title,
		Filter:      f,
		GeneratedBy: generatedBy,
		GeneratedAt: b.now().UTC(),
	}
	for i, kind := range kinds {
		rows, total := aggregate(kind, results[i], f)
		r.Rows = append(r.Rows, rows...)
		r.Totals = append(r.Totals, total)
	}

	metrics.IncrementReportGenerated("success")
	b.logger.Info("Report built",
		zap.String("title", title),
		zap.Int("rows", len(r.Rows)),
		zap.String("generated_by", generatedBy))
	return r, nil
}

func matches(a model.ActivityBase, f Filter) bool {
	if f.District != "" && !strings.EqualFold(a.District, f.District) {
		return false
	}
	if !f.From.IsZero() && a.Date.Before(startOfDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && !a.Date.Before(startOfDay(f.To).AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// aggregate 按地区汇总，地区按名称排序
func aggregate(kind model.Kind, acts []model.Activity, f Filter) ([]Row, Row) {
	byDistrict := map[string]*Row{}
	total := Row{Kind: kind}

	for _, act := range acts {
		a := act.Base()
		if !matches(a, f) {
			continue
		}
		r, ok := byDistrict[a.District]
		if !ok {
			r = &Row{Kind: kind, District: a.District}
			byDistrict[a.District] = r
		}
		for _, dst := range []*Row{r, &total} {
			dst.Count++
			dst.Target += a.Target
			dst.Achieved += a.Achieved
			dst.Male += a.Beneficiaries.Male
			dst.Female += a.Beneficiaries.Female
		}
	}

	districts := make([]string, 0, len(byDistrict))
	for d := range byDistrict {
		districts = append(districts, d)
	}
	sort.Strings(districts)

	rows := make([]Row, 0, len(districts))
	for _, d := range districts {
		rows = append(rows, finish(*byDistrict[d]))
	}
	return rows, finish(total)
}

func finish(r Row) Row {
	r.Beneficiaries = r.Male + r.Female
	r.Progress = Progress(r.Target, r.Achieved)
	return r
}

// Progress 完成百分比，保留一位小数；target 为 0 时为 0
func Progress(target, achieved int) float64 {
	if target <= 0 {
		return 0
	}
	return math.Round(float64(achieved)*1000/float64(target)) / 10
}
