package handler

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"coupon_hub/internal/domain/coupon/service"

	"github.com/xuri/excelize/v2"
)

// 上传文件大小上限
const maxImportSize = 10 << 20

var errUnsupportedFormat = errors.New("unsupported file type, use .xlsx or .csv")

// 导入文件类型
var contentTypes = map[string]string{
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":  "text/csv",
}

// decodeSheet 解码上传的表格，读取第一个工作表
func decodeSheet(filename string, data []byte) (service.Sheet, error) {
	var records [][]string
	var err error
	serials := false
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		records, err = readXLSX(data)
		serials = true
	case ".csv":
		records, err = readCSV(data)
	default:
		return service.Sheet{}, errUnsupportedFormat
	}
	if err != nil {
		return service.Sheet{}, err
	}
	if len(records) == 0 {
		return service.Sheet{}, errors.New("file is empty")
	}
	sheet := service.NewSheet(records[0], records[1:])
	sheet.DateSerials = serials
	return sheet, nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	// 日期单元格保留序列号，由导入逻辑统一解析
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return records, nil
}
