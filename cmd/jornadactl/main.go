// jornadactl 工时服务的运维命令行
//
//	jornadactl -server http://localhost:8080 health
//	jornadactl recalculate
//	jornadactl report -from 2024-03-01 -to 2024-03-31 [-operator <uuid>] [-out file.xlsx]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Details string          `json:"details,omitempty"`
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// loadDefaults 从环境变量读取默认服务地址（JORNADA_SERVER_URL）
func loadDefaults() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("JORNADA")
	v.AutomaticEnv()
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("cli_timeout", 5*time.Minute)
	return v
}

// run 解析参数并执行子命令，返回进程退出码
func run(args []string, stdout, stderr io.Writer) int {
	defaults := loadDefaults()

	fs := flag.NewFlagSet("jornadactl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", defaults.GetString("server_url"), "服务地址")
	timeout := fs.Duration("timeout", defaults.GetDuration("cli_timeout"), "请求超时")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "用法: jornadactl [-server URL] <health|recalculate|report> [参数]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 2
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(*server, "/")).
		SetTimeout(*timeout).
		SetHeader("Accept", "application/json")

	var err error
	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "health":
		err = runHealth(client, stdout)
	case "recalculate":
		err = runRecalculate(client, stdout)
	case "report":
		err = runReport(client, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "未知命令: %s\n", cmd)
		fs.Usage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

func runHealth(client *resty.Client, stdout io.Writer) error {
	resp, err := client.R().Get("/health")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, resp.String())
	if resp.IsError() {
		return fmt.Errorf("服务不可用: HTTP %d", resp.StatusCode())
	}
	return nil
}

func runRecalculate(client *resty.Client, stdout io.Writer) error {
	var body apiResponse
	resp, err := client.R().
		SetResult(&body).
		SetError(&body).
		Post("/api/v1/shifts/recalculate")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), &body)
	}
	return printJSON(stdout, body.Data)
}

func runReport(client *resty.Client, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	from := fs.String("from", "", "开始日期 YYYY-MM-DD")
	to := fs.String("to", "", "结束日期 YYYY-MM-DD")
	operator := fs.String("operator", "", "操作员 ID")
	out := fs.String("out", "", "导出 xlsx 文件路径；为空时输出 JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	params := map[string]string{}
	if *from != "" {
		params["from"] = *from
	}
	if *to != "" {
		params["to"] = *to
	}
	if *operator != "" {
		params["operator_id"] = *operator
	}

	if *out == "" {
		var body apiResponse
		resp, err := client.R().
			SetQueryParams(params).
			SetResult(&body).
			SetError(&body).
			Get("/api/v1/reports/permits")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return apiError(resp.StatusCode(), &body)
		}
		return printJSON(stdout, body.Data)
	}

	resp, err := client.R().
		SetQueryParams(params).
		SetOutput(*out).
		Get("/api/v1/reports/permits/export")
	if err != nil {
		return err
	}
	if resp.IsError() {
		// 错误响应体已写入输出文件
		msg, _ := os.ReadFile(*out)
		_ = os.Remove(*out)
		return fmt.Errorf("导出失败: HTTP %d %s", resp.StatusCode(), strings.TrimSpace(string(msg)))
	}
	fmt.Fprintf(stdout, "已导出: %s\n", *out)
	return nil
}

func apiError(status int, body *apiResponse) error {
	if body.Details != "" {
		return fmt.Errorf("HTTP %d [%d] %s: %s", status, body.Code, body.Message, body.Details)
	}
	return fmt.Errorf("HTTP %d [%d] %s", status, body.Code, body.Message)
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
