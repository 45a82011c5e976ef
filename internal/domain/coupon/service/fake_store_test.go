package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	campaignModel "coupon_hub/internal/domain/campaign/model"
	"coupon_hub/internal/domain/coupon/model"
	"coupon_hub/internal/domain/coupon/repository"
	userModel "coupon_hub/internal/domain/user/model"
	"coupon_hub/internal/pkg/push"
	"coupon_hub/pkg/apperror"
	pkgmodel "coupon_hub/pkg/model"

	"github.com/google/uuid"
)

// fakeStore 内存存储，条件更新在锁内完成，失败的事务按日志回滚
type fakeStore struct {
	mu        sync.Mutex
	seq       int
	coupons   map[string]*model.Coupon
	order     []string
	campaigns map[string]*campaignModel.Campaign
	users     []userModel.User

	// 按用户注入 AssignBatch 失败
	assignBatchErr map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		coupons:        make(map[string]*model.Coupon),
		campaigns:      make(map[string]*campaignModel.Campaign),
		assignBatchErr: make(map[string]error),
	}
}

type journalKey struct{}

type journal struct {
	undo []func()
}

// Do 嵌套调用使用独立日志，相当于保存点：失败只回滚自身的写入，
// 成功时并入外层日志，随外层一起回滚
func (s *fakeStore) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	parent, _ := ctx.Value(journalKey{}).(*journal)
	j := &journal{}
	err := fn(context.WithValue(ctx, journalKey{}, j))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	if parent != nil {
		parent.undo = append(parent.undo, j.undo...)
	}
	return nil
}

// record 调用方持有锁
func (s *fakeStore) record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

func (s *fakeStore) addCampaign(title string) *campaignModel.Campaign {
	c := &campaignModel.Campaign{BaseModel: pkgmodel.BaseModel{ID: uuid.NewString()}, Title: title, IsActive: true}
	s.campaigns[c.ID] = c
	return c
}

func (s *fakeStore) addUser(email string) string {
	id := uuid.NewString()
	s.users = append(s.users, userModel.User{BaseModel: pkgmodel.BaseModel{ID: id}, Email: email, IsActive: true})
	return id
}

// seed 直接写入，不经过服务
func (s *fakeStore) seed(c model.Coupon) *model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.DiscountType == "" {
		c.DiscountType = model.DiscountFixed
	}
	s.insertLocked(context.Background(), &c)
	return s.coupons[c.ID]
}

func (s *fakeStore) snapshot(id string) model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.coupons[id]
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.coupons)
}

func (s *fakeStore) insertLocked(ctx context.Context, c *model.Coupon) {
	s.seq++
	c.CreatedAt = time.Unix(int64(s.seq), 0)
	c.UpdatedAt = c.CreatedAt
	stored := *c
	s.coupons[c.ID] = &stored
	s.order = append(s.order, c.ID)
	id := c.ID
	s.record(ctx, func() {
		delete(s.coupons, id)
		for i, o := range s.order {
			if o == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	})
}

func (s *fakeStore) codeTakenLocked(code string) bool {
	for _, c := range s.coupons {
		if c.Code == code {
			return true
		}
	}
	return false
}

func (s *fakeStore) ordered(match func(*model.Coupon) bool) []model.Coupon {
	var out []model.Coupon
	for _, id := range s.order {
		if c := s.coupons[id]; match(c) {
			out = append(out, *c)
		}
	}
	return out
}

func sameCampaign(c *model.Coupon, campaignID string) bool {
	return c.CampaignID != nil && *c.CampaignID == campaignID
}

// fakeCoupons 实现 repository.CouponRepository
type fakeCoupons struct{ *fakeStore }

var _ repository.CouponRepository = fakeCoupons{}

func (f fakeCoupons) Create(ctx context.Context, coupon *model.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.codeTakenLocked(coupon.Code) {
		return apperror.Conflict("coupon already exists")
	}
	if coupon.ID == "" {
		coupon.ID = uuid.NewString()
	}
	f.insertLocked(ctx, coupon)
	return nil
}

func (f fakeCoupons) CreateBatch(ctx context.Context, coupons []*model.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// 与数据库一致，冲突前的行已写入，由事务回滚
	for _, c := range coupons {
		if f.codeTakenLocked(c.Code) {
			return apperror.Conflict("coupon already exists")
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		f.insertLocked(ctx, c)
	}
	return nil
}

func (f fakeCoupons) GetByID(_ context.Context, id string) (*model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok {
		return nil, apperror.NotFound("coupon not found")
	}
	cp := *c
	return &cp, nil
}

func (f fakeCoupons) GetForUpdate(ctx context.Context, id string) (*model.Coupon, error) {
	return f.GetByID(ctx, id)
}

func (f fakeCoupons) UpdateDetails(ctx context.Context, coupon *model.Coupon) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[coupon.ID]
	if !ok {
		return apperror.NotFound("coupon not found")
	}
	for _, other := range f.coupons {
		if other.ID != coupon.ID && other.Code == coupon.Code {
			return apperror.Conflict("coupon already exists")
		}
	}
	prev := *c
	c.Code, c.DiscountType, c.DiscountValue = coupon.Code, coupon.DiscountType, coupon.DiscountValue
	c.ExpiresAt, c.CampaignID = coupon.ExpiresAt, coupon.CampaignID
	f.record(ctx, func() { *c = prev })
	return nil
}

func (f fakeCoupons) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok {
		return apperror.NotFound("coupon not found")
	}
	delete(f.coupons, id)
	f.record(ctx, func() { f.coupons[id] = c })
	return nil
}

func (f fakeCoupons) AssignIfUnassigned(ctx context.Context, id, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok || c.AssignedToUserID != nil || c.Redeemed {
		return false, nil
	}
	uid := userID
	c.AssignedToUserID = &uid
	f.record(ctx, func() { c.AssignedToUserID = nil })
	return true, nil
}

func (f fakeCoupons) AssignBatch(ctx context.Context, ids []string, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.assignBatchErr[userID]; err != nil {
		return 0, err
	}
	var n int64
	for _, id := range ids {
		c, ok := f.coupons[id]
		if !ok || c.AssignedToUserID != nil || c.Redeemed {
			continue
		}
		uid := userID
		c.AssignedToUserID = &uid
		f.record(ctx, func() { c.AssignedToUserID = nil })
		n++
	}
	return n, nil
}

func (f fakeCoupons) MarkRedeemed(ctx context.Context, id, userID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.coupons[id]
	if !ok || c.Redeemed || c.AssignedToUserID == nil || *c.AssignedToUserID != userID {
		return false, nil
	}
	c.Redeemed = true
	c.RedeemedAt = &at
	f.record(ctx, func() { c.Redeemed, c.RedeemedAt = false, nil })
	return true, nil
}

func (f fakeCoupons) LockUnassigned(ctx context.Context, campaignID string) ([]model.Coupon, error) {
	return f.ListUnassigned(ctx, campaignID)
}

func (f fakeCoupons) ListUnassigned(_ context.Context, campaignID string) ([]model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ordered(func(c *model.Coupon) bool {
		return sameCampaign(c, campaignID) && c.AssignedToUserID == nil && !c.Redeemed
	}), nil
}

func (f fakeCoupons) ListByCampaign(_ context.Context, campaignID string) ([]model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ordered(func(c *model.Coupon) bool { return sameCampaign(c, campaignID) }), nil
}

func (f fakeCoupons) StatsByCampaign(_ context.Context, campaignIDs []string) (map[string]campaignModel.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]campaignModel.Stats)
	for _, id := range campaignIDs {
		var st campaignModel.Stats
		for _, c := range f.ordered(func(c *model.Coupon) bool { return sameCampaign(c, id) }) {
			st.Total++
			if c.IsAssigned() {
				st.Assigned++
			}
			if c.Redeemed {
				st.Redeemed++
			}
		}
		st.Unassigned = st.Total - st.Assigned
		if st.Total > 0 {
			out[id] = st
		}
	}
	return out, nil
}

func (f fakeCoupons) List(_ context.Context, filter repository.CouponFilter) ([]model.Coupon, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.ordered(func(c *model.Coupon) bool {
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.Code), strings.ToLower(filter.Search)) {
			return false
		}
		if filter.CampaignID != "" && !sameCampaign(c, filter.CampaignID) {
			return false
		}
		if filter.AssignedUserID != "" && (c.AssignedToUserID == nil || *c.AssignedToUserID != filter.AssignedUserID) {
			return false
		}
		return true
	})
	total := int64(len(all))
	if filter.Offset >= len(all) {
		return []model.Coupon{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if filter.Limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], total, nil
}

func (f fakeCoupons) ListByUser(_ context.Context, userID string) ([]model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ordered(func(c *model.Coupon) bool {
		return c.AssignedToUserID != nil && *c.AssignedToUserID == userID
	}), nil
}

func (f fakeCoupons) FindByUserAndCampaign(_ context.Context, userID, campaignID string) (*model.Coupon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := f.ordered(func(c *model.Coupon) bool {
		return sameCampaign(c, campaignID) && c.AssignedToUserID != nil && *c.AssignedToUserID == userID
	})
	if len(found) == 0 {
		return nil, apperror.NotFound("coupon not found")
	}
	return &found[0], nil
}

func (f fakeCoupons) ExistingCodes(_ context.Context, codes []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, code := range codes {
		if f.codeTakenLocked(code) {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

// fakeCampaigns 实现 CampaignReader
type fakeCampaigns struct{ *fakeStore }

func (f fakeCampaigns) GetByID(_ context.Context, id string) (*campaignModel.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, apperror.NotFound("campaign not found")
	}
	cp := *c
	return &cp, nil
}

// fakeUsers 实现 UserDirectory，顺序即创建顺序
type fakeUsers struct{ *fakeStore }

func (f fakeUsers) ListAllOrdered(context.Context) ([]userModel.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]userModel.User(nil), f.users...), nil
}

func (f fakeUsers) ExistingIDs(_ context.Context, ids []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range ids {
		for _, u := range f.users {
			if u.ID == id {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

// recordingNotifier 记录推送的账号
type recordingNotifier struct {
	mu       sync.Mutex
	accounts [][]string
}

func (n *recordingNotifier) NotifyAccounts(_ context.Context, ids []string, _ push.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts = append(n.accounts, append([]string(nil), ids...))
	return nil
}
