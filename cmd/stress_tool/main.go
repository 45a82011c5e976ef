package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"coupon_hub/internal/pkg/identity"

	"github.com/goccy/go-json"
)

// 压测参数
var (
	baseURL    = flag.String("base", "http://localhost:8080", "server base url")
	secret     = flag.String("secret", os.Getenv("AUTH_HMAC_SECRET"), "hmac secret shared with the server")
	issuerName = flag.String("issuer", os.Getenv("AUTH_ISSUER"), "token issuer claim")
	totalUsers = flag.Int("users", 200, "concurrent users")
	totalStock = flag.Int("stock", 50, "coupons to generate")
	redeemers  = flag.Int("redeem", 100, "concurrent redeem attempts on one coupon")
)

var httpClient *http.Client

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type client struct {
	token string
}

func init() {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxIdleConnsPerHost = 2000
	t.MaxConnsPerHost = 2000
	httpClient = &http.Client{
		Transport: t,
		Timeout:   10 * time.Second,
	}
}

func main() {
	flag.Parse()
	if *secret == "" {
		fmt.Println("需要 -secret 或 AUTH_HMAC_SECRET")
		os.Exit(2)
	}
	issuer := identity.NewIssuer(*secret, *issuerName, time.Hour)
	run := time.Now().UnixNano()

	admin := mustClient(issuer, identity.Identity{
		Subject: fmt.Sprintf("stress-admin-%d", run),
		Email:   fmt.Sprintf("stress-admin-%d@example.com", run),
		Name:    "Stress Admin",
		Roles:   []string{identity.RoleAdmin},
	})

	// 1. 创建活动并生成优惠券
	campaignID := createCampaign(admin)
	coupons := generateCoupons(admin, campaignID, *totalStock)
	fmt.Printf("活动 %s 已生成 %d 张券\n", campaignID, len(coupons))

	// 2. 准备用户：首次访问 /users/me 会创建本地用户
	users := make([]*client, *totalUsers)
	userIDs := make([]string, *totalUsers)
	for i := range users {
		users[i] = mustClient(issuer, identity.Identity{
			Subject: fmt.Sprintf("stress-user-%d-%d", run, i),
			Email:   fmt.Sprintf("stress-user-%d-%d@example.com", run, i),
			Name:    fmt.Sprintf("Stress User %d", i),
		})
		userIDs[i] = provision(users[i])
	}

	// 3. 同一张券并发分配给不同用户，只能成功一次
	target := coupons[0]
	ok, failed, d := race(*totalUsers, func(i int) bool {
		return admin.post(fmt.Sprintf("/admin/coupons/assign/%s/user/%s", target, userIDs[i]), nil) == nil
	})
	report("并发分配同一张券", *totalUsers, ok, failed, d, 1)

	owner := ownerOf(admin, target, users, userIDs)
	if owner == nil {
		fmt.Println("未找到持有者，跳过核销压测")
	} else {
		// 4. 持有者并发核销，只能成功一次
		ok, failed, d = race(*redeemers, func(int) bool {
			return owner.post("/user/coupons/redeem/"+target, nil) == nil
		})
		report("并发核销同一张券", *redeemers, ok, failed, d, 1)
	}

	// 5. 两个轮询分配并发执行，剩余券全部分配且只分配一次
	var assigned atomic.Int64
	ok, failed, d = race(2, func(int) bool {
		var res struct {
			Assigned int `json:"assigned"`
		}
		if err := admin.postInto("/admin/coupons/assign/bulk/"+campaignID, nil, &res); err != nil {
			return false
		}
		assigned.Add(int64(res.Assigned))
		return true
	})
	report("并发轮询分配", 2, ok, failed, d, -1)
	fmt.Printf("轮询分配合计: %d (预期: %d)\n", assigned.Load(), len(coupons)-1)

	var stats struct {
		Total    int64 `json:"total"`
		Assigned int64 `json:"assigned"`
		Redeemed int64 `json:"redeemed"`
	}
	if err := admin.getInto("/admin/coupons/stats/"+campaignID, &stats); err == nil {
		fmt.Printf("统计: total=%d assigned=%d redeemed=%d\n", stats.Total, stats.Assigned, stats.Redeemed)
	}
}

func mustClient(issuer *identity.Issuer, ident identity.Identity) *client {
	token, err := issuer.Sign(ident)
	if err != nil {
		fmt.Printf("签发令牌失败: %v\n", err)
		os.Exit(1)
	}
	return &client{token: token}
}

func createCampaign(admin *client) string {
	now := time.Now().UTC()
	var res struct {
		ID string `json:"id"`
	}
	err := admin.postInto("/admin/campaigns", map[string]interface{}{
		"title":      "压测活动",
		"start_date": now,
		"end_date":   now.Add(24 * time.Hour),
	}, &res)
	if err != nil {
		fmt.Printf("创建活动失败: %v\n", err)
		os.Exit(1)
	}
	return res.ID
}

func generateCoupons(admin *client, campaignID string, count int) []string {
	var res struct {
		Coupons []struct {
			ID string `json:"id"`
		} `json:"coupons"`
	}
	if err := admin.postInto(fmt.Sprintf("/admin/coupons/generate/%s/%d", campaignID, count), nil, &res); err != nil {
		fmt.Printf("生成优惠券失败: %v\n", err)
		os.Exit(1)
	}
	ids := make([]string, 0, len(res.Coupons))
	for _, c := range res.Coupons {
		ids = append(ids, c.ID)
	}
	if len(ids) == 0 {
		fmt.Println("没有生成任何优惠券")
		os.Exit(1)
	}
	return ids
}

func provision(c *client) string {
	var me struct {
		ID string `json:"id"`
	}
	if err := c.getInto("/users/me", &me); err != nil {
		fmt.Printf("初始化用户失败: %v\n", err)
		os.Exit(1)
	}
	return me.ID
}

func ownerOf(admin *client, couponID string, users []*client, userIDs []string) *client {
	var coupon struct {
		AssignedToUserID *string `json:"assigned_to_user_id"`
	}
	if err := admin.getInto("/admin/coupons/"+couponID, &coupon); err != nil || coupon.AssignedToUserID == nil {
		return nil
	}
	for i, id := range userIDs {
		if id == *coupon.AssignedToUserID {
			return users[i]
		}
	}
	return nil
}

// race 并发执行 n 次 fn，统计成功与失败次数
func race(n int, fn func(i int) bool) (int64, int64, time.Duration) {
	var wg sync.WaitGroup
	var ok, failed atomic.Int64
	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if fn(i) {
				ok.Add(1)
			} else {
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()
	return ok.Load(), failed.Load(), time.Since(start)
}

func report(name string, total int, ok, failed int64, d time.Duration, want int64) {
	fmt.Println("--------------------------------------------------")
	fmt.Printf("%s，耗时: %v\n", name, d)
	fmt.Printf("总请求数: %d，QPS: %.2f\n", total, float64(total)/d.Seconds())
	if want >= 0 {
		fmt.Printf("成功: %d (预期: %d)\n", ok, want)
	} else {
		fmt.Printf("成功: %d\n", ok)
	}
	fmt.Printf("失败: %d\n", failed)
}

func (c *client) post(path string, body interface{}) error {
	return c.do(http.MethodPost, path, body, nil)
}

func (c *client) postInto(path string, body, out interface{}) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *client) getInto(path string, out interface{}) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *client) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, *baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("status %d: %s", resp.StatusCode, respBody)
	}
	if resp.StatusCode >= 300 || env.Code != 0 {
		return fmt.Errorf("status %d code %d: %s", resp.StatusCode, env.Code, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
