package pipeline

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// IngestionConfig 数据摄取配置
type IngestionConfig struct {
	Delimiter      rune     `json:"delimiter"`
	Encoding       string   `json:"encoding"`
	OutcomeColumn  string   `json:"outcome_column"`
	MissingMarkers []string `json:"missing_markers"`
	DecimalComma   bool     `json:"decimal_comma"`
	CacheSize      int      `json:"cache_size"`
}

// DefaultOutcomeColumn 默认结果列
const DefaultOutcomeColumn = "Resultado"

// IngestionStats 摄取统计
type IngestionStats struct {
	FilesLoaded   int64     `json:"files_loaded"`
	RowsLoaded    int64     `json:"rows_loaded"`
	CacheHits     int64     `json:"cache_hits"`
	LastIngestion time.Time `json:"last_ingestion"`
}

type fileKey struct {
	path    string
	size    int64
	modTime int64
}

// Ingester 表格加载器
type Ingester struct {
	config   IngestionConfig
	encoding encoding.Encoding
	cleaner  *DataCleaner
	cache    *lru.Cache[fileKey, dataframe.DataFrame]
	logger   *zap.Logger

	stats     IngestionStats
	statsLock sync.RWMutex
}

// NewIngester 创建表格加载器
func NewIngester(config IngestionConfig, logger *zap.Logger) (*Ingester, error) {
	if config.Delimiter == 0 {
		config.Delimiter = ';'
	}
	if config.OutcomeColumn == "" {
		config.OutcomeColumn = DefaultOutcomeColumn
	}
	if config.MissingMarkers == nil {
		config.MissingMarkers = []string{"", "NA", "NaN"}
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	enc, err := lookupEncoding(config.Encoding)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[fileKey, dataframe.DataFrame](config.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create parse cache")
	}

	return &Ingester{
		config:   config,
		encoding: enc,
		cleaner:  NewDefaultCleaner(config, logger),
		cache:    cache,
		logger:   logger,
	}, nil
}

// Load 读取所有文件并按顺序合并为一个行集合
func (in *Ingester) Load(paths []string) (*RowSet, error) {
	if len(paths) == 0 {
		return nil, ErrNoInput
	}

	var merged dataframe.DataFrame
	sources := make([]string, 0, len(paths))
	counts := make([]int, 0, len(paths))
	for i, path := range paths {
		df, err := in.readFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, path)
		counts = append(counts, df.Nrow())

		if i == 0 {
			merged = df
			continue
		}
		merged = merged.Concat(df)
		if merged.Err != nil {
			return nil, &LoadError{Path: path, Err: merged.Err}
		}
		in.logger.Debug("table merged", zap.String("path", path), zap.Int("columns", merged.Ncol()))
	}

	set := toRowSet(merged, sources, counts)
	in.cleaner.Clean(set)
	set.InferNumeric()

	if !set.HasColumn(in.config.OutcomeColumn) {
		return nil, errors.Wrapf(ErrSchema, "column %q not found", in.config.OutcomeColumn)
	}

	in.statsLock.Lock()
	in.stats.FilesLoaded += int64(len(paths))
	in.stats.RowsLoaded += int64(set.Len())
	in.stats.LastIngestion = time.Now()
	in.statsLock.Unlock()

	cleaning := in.cleaner.GetStats()
	in.logger.Info("tables loaded",
		zap.Int("files", len(paths)),
		zap.Int("rows", set.Len()),
		zap.Int("columns", len(set.Columns)),
		zap.Int64("corrected_rows", cleaning.Corrected),
	)
	return set, nil
}

// readFile 解析单个文件，按路径、大小和修改时间缓存
func (in *Ingester) readFile(path string) (dataframe.DataFrame, error) {
	info, err := os.Stat(path)
	if err != nil {
		return dataframe.DataFrame{}, &LoadError{Path: path, Err: err}
	}
	if info.IsDir() {
		return dataframe.DataFrame{}, &LoadError{Path: path, Err: errors.New("is a directory")}
	}

	key := fileKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}
	if df, ok := in.cache.Get(key); ok {
		in.statsLock.Lock()
		in.stats.CacheHits++
		in.statsLock.Unlock()
		return df, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, &LoadError{Path: path, Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(in.decode(file))
	if err != nil {
		return dataframe.DataFrame{}, &LoadError{Path: path, Err: err}
	}
	df := parseTable(data, in.config)
	if df.Err != nil {
		return dataframe.DataFrame{}, &LoadError{Path: path, Err: df.Err}
	}

	in.cache.Add(key, df)
	in.logger.Debug("table parsed", zap.String("path", path), zap.Int("rows", df.Nrow()))
	return df, nil
}

func (in *Ingester) decode(r io.Reader) io.Reader {
	return transform.NewReader(r, in.encoding.NewDecoder())
}

// GetStats 获取统计信息
func (in *Ingester) GetStats() IngestionStats {
	in.statsLock.RLock()
	defer in.statsLock.RUnlock()

	return in.stats
}

func parseTable(data []byte, config IngestionConfig) dataframe.DataFrame {
	nanValues := append([]string{"<nil>"}, config.MissingMarkers...)
	df := dataframe.ReadCSV(bytes.NewReader(data),
		dataframe.WithDelimiter(config.Delimiter),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nanValues),
	)
	if df.Err == nil {
		return df
	}
	if header, ok := headerOnly(data, config.Delimiter); ok {
		return emptyTable(header)
	}
	return df
}

// headerOnly reports whether data holds a header record and nothing else.
// gota refuses such tables.
func headerOnly(data []byte, delimiter rune) ([]string, bool) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiter
	records, err := r.ReadAll()
	if err != nil || len(records) != 1 || len(records[0]) == 0 {
		return nil, false
	}
	return records[0], true
}

// emptyTable 构建只有列名的零行数据框
func emptyTable(header []string) dataframe.DataFrame {
	columns := make([]series.Series, len(header))
	for i, name := range header {
		columns[i] = series.New([]string{}, series.String, name)
	}
	return dataframe.New(columns...)
}

// toRowSet 将数据框转换为行集合，counts 为每个来源文件的行数
func toRowSet(df dataframe.DataFrame, sources []string, counts []int) *RowSet {
	names := df.Names()
	records := make([][]string, len(names))
	nans := make([][]bool, len(names))
	for i, name := range names {
		col := df.Col(name)
		records[i] = col.Records()
		nans[i] = col.IsNaN()
	}

	set := &RowSet{Columns: names, Rows: make([]Row, 0, df.Nrow())}
	source, line, remaining := 0, 0, 0
	if len(counts) > 0 {
		remaining = counts[0]
	}
	for r := 0; r < df.Nrow(); r++ {
		for remaining == 0 && source < len(counts)-1 {
			source++
			remaining = counts[source]
			line = 0
		}
		values := make(map[string]Value, len(names))
		for c, name := range names {
			if nans[c][r] {
				continue
			}
			values[name] = TextValue(records[c][r])
		}
		// 第 1 行为表头
		set.Rows = append(set.Rows, Row{
			Source: sources[source],
			Line:   line + 2,
			Values: values,
		})
		line++
		remaining--
	}
	return set
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, errors.Wrapf(err, "unsupported encoding %q", name)
	}
	return enc, nil
}
