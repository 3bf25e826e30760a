package conn

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jdf-id-au/jocap-reader/internal/dbf"
	"github.com/jdf-id-au/jocap-reader/internal/extract"
	"github.com/jdf-id-au/jocap-reader/internal/query"
	"github.com/jdf-id-au/jocap-reader/internal/schema"
	"github.com/jdf-id-au/jocap-reader/pkg"
	sorted "github.com/tobshub/go-sortedmap"
)

type RequestAction string

const (
	RequestActionFind    RequestAction = "find"
	RequestActionExtract RequestAction = "extract"
	RequestActionFields  RequestAction = "fields"
)

type WsRequest struct {
	Action RequestAction `json:"action"`
	ReqId  int           `json:"__jocap_client_req_id__"` // used in clients
}

type Response struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// don't manually set this. it comes from the client
	ReqId int `json:"__jocap_client_req_id__"`
}

func NewErrorResponse(status int, err string) Response {
	return Response{Message: err, Status: status}
}

func NewResponse(status int, message string, data any) Response {
	return Response{Data: data, Message: message, Status: status}
}

// App is one served export directory plus its loaded data dictionary.
type App struct {
	Dir      string
	Registry *schema.Registry
}

type FindRequest struct {
	Where []pkg.Map[string, any] `json:"where"`
}

func FindReqHandler(app *App, raw []byte) Response {
	var req FindRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	conds, err := parseConditions(req.Where)
	if err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	rows, err := extract.FindCases(app.Dir, conds...)
	if err != nil {
		return errorResponse(err)
	}
	defer rows.Close()

	// order the response by case number rather than file position;
	// keyed by position so rows sharing a case number all survive
	found := sorted.New[int, dbf.Record](0, func(a, b dbf.Record) bool {
		an, _ := query.CaseNumber(a)
		bn, _ := query.CaseNumber(b)
		return an < bn
	})
	count := 0
	for rows.Next() {
		row := rows.Row()
		if _, ok := query.CaseNumber(row); !ok {
			continue
		}
		if found.Insert(count, row) {
			count++
		}
	}
	if err := rows.Err(); err != nil {
		return errorResponse(err)
	}

	data := make([]dbf.Record, 0, count)
	if count > 0 {
		iterCh, err := found.IterCh()
		if err == nil {
			for rec := range iterCh.Records() {
				data = append(data, rec.Val)
			}
		}
	}

	return NewResponse(http.StatusOK,
		fmt.Sprintf("Found %d matching cases", len(data)), data)
}

type ExtractRequest struct {
	Cases []int `json:"cases"`
}

func ExtractReqHandler(app *App, raw []byte) Response {
	var req ExtractRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}
	if len(req.Cases) == 0 {
		return NewErrorResponse(http.StatusBadRequest, "No case numbers given")
	}

	results, err := extract.ExtractCases(app.Dir, extract.Cases(req.Cases...))
	if err != nil {
		return errorResponse(err)
	}

	data := pkg.Map[string, []dbf.Record]{}
	for name, rows := range results {
		table_rows := []dbf.Record{}
		for rows.Next() {
			table_rows = append(table_rows, rows.Row())
		}
		if err := rows.Err(); err != nil {
			extractCloseAll(results)
			return errorResponse(err)
		}
		rows.Close()
		data.Set(name, table_rows)
	}

	return NewResponse(http.StatusOK,
		fmt.Sprintf("Extracted %d tables for %d cases", len(data), len(req.Cases)), data)
}

type FieldsRequest struct {
	Table string `json:"table"`
}

func FieldsReqHandler(app *App, raw []byte) Response {
	var req FieldsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	fields, ok := app.Registry.Fields(req.Table)
	if !ok {
		return NewErrorResponse(http.StatusNotFound, "Table not found")
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Fields of table %s", req.Table), fields)
}

func errorResponse(err error) Response {
	switch err.(type) {
	case *query.UnsupportedConditionError:
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	case *dbf.OpenError:
		return NewErrorResponse(http.StatusNotFound, err.Error())
	}
	return NewErrorResponse(http.StatusInternalServerError, err.Error())
}

func extractCloseAll(results map[string]*extract.Rows) {
	for _, rows := range results {
		rows.Close()
	}
}

// parseConditions maps tagged json condition objects onto the filter
// DSL. Unknown tags are rejected here, mirroring the compiler.
func parseConditions(where []pkg.Map[string, any]) ([]query.Condition, error) {
	conds := make([]query.Condition, 0, len(where))
	for _, w := range where {
		tag, _ := w.Get("cond").(string)
		switch tag {
		case "case_is":
			conds = append(conds, query.CaseIs{N: pkg.NumToInt(w.Get("n"))})
		case "case_prefix":
			conds = append(conds, query.CasePrefix{Prefix: stringArg(w, "prefix")})
		case "case_between":
			conds = append(conds, query.CaseBetween{
				Lo: pkg.NumToInt(w.Get("lo")), Hi: pkg.NumToInt(w.Get("hi"))})
		case "date_is":
			on, err := dateArg(w, "on")
			if err != nil {
				return nil, err
			}
			conds = append(conds, query.DateIs{On: on})
		case "date_between":
			from, err := dateArg(w, "from")
			if err != nil {
				return nil, err
			}
			to, err := dateArg(w, "to")
			if err != nil {
				return nil, err
			}
			conds = append(conds, query.DateBetween{From: from, To: to})
		case "record_is":
			conds = append(conds, query.RecordIs{N: pkg.NumToInt(w.Get("n"))})
		case "surname_is":
			conds = append(conds, query.SurnameIs{S: stringArg(w, "s")})
		case "name_like":
			conds = append(conds, query.NameLike{S: stringArg(w, "s")})
		case "field_contains":
			conds = append(conds, query.FieldContains{
				Field: stringArg(w, "field"), S: stringArg(w, "s")})
		case "text_contains":
			conds = append(conds, query.TextContains{
				Base: stringArg(w, "base"), S: stringArg(w, "s")})
		default:
			return nil, fmt.Errorf("Unknown condition tag: %q", tag)
		}
	}
	return conds, nil
}

func stringArg(w pkg.Map[string, any], key string) string {
	s, _ := w.Get(key).(string)
	return s
}

func dateArg(w pkg.Map[string, any], key string) (time.Time, error) {
	s := stringArg(w, key)
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("Bad date %q for %s", s, key)
	}
	return d, nil
}
