package configure

/*
	실행(run) 마다 고유한 키를 발급하고 진행 상황을 저장한다.
	redis_addr 가 있으면 redis 에, 없으면 로컬 캐시에 저장한다.
	redis 환경에서는 다른 프로세스도 같은 키로 진행 상황을 조회할 수 있다.
*/
import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gwuhaolin/tsgen/utils/uid"

	"github.com/go-redis/redis/v7"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	keyLen    = 48
	keyPrefix = "tsgen:run:"
	// 끝난 실행은 이 시간 뒤에 지워진다.
	finishedTTL = 24 * time.Hour
)

type RunState string

const (
	RunStarted  RunState = "running"
	RunFinished RunState = "finished"
	RunFailed   RunState = "failed"
)

type RunInfo struct {
	ID       string    `json:"id"`
	Target   string    `json:"target"`
	State    RunState  `json:"state"`
	Frames   uint64    `json:"frames"`
	Packets  uint64    `json:"packets"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Updated  time.Time `json:"updated"`
	Finished time.Time `json:"finished"`
}

type Registry struct {
	redisCli   *redis.Client // 레디스 클라이언트
	localCache *cache.Cache  // 로컬 캐시
}

// NewRegistry 는 redisAddr 가 비어 있으면 로컬 캐시를 쓴다.
func NewRegistry(redisAddr, redisPwd string) (*Registry, error) {
	r := &Registry{}
	if len(redisAddr) == 0 {
		r.localCache = cache.New(cache.NoExpiration, time.Hour)
		return r, nil
	}

	r.redisCli = redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPwd,
		DB:       0,
	})
	if _, err := r.redisCli.Ping().Result(); err != nil {
		r.redisCli.Close()
		return nil, errors.Wrap(err, "redis")
	}
	log.Info("Redis connected")
	return r, nil
}

func (r *Registry) local() bool {
	return r.redisCli == nil
}

// Register 는 새 실행을 등록하고 키를 돌려준다. 이미 있는 키면 다시 뽑는다.
func (r *Registry) Register(target string) (key string, err error) {
	now := time.Now()
	info := &RunInfo{
		ID:      uid.NewId(),
		Target:  target,
		State:   RunStarted,
		Started: now,
		Updated: now,
	}

	for {
		key = uid.RandStringRunes(keyLen)
		if r.local() {
			if r.localCache.Add(key, info, cache.NoExpiration) == nil {
				break
			}
			continue
		}

		b, _ := json.Marshal(info)
		ok, err := r.redisCli.SetNX(keyPrefix+key, b, 0).Result()
		if err != nil {
			return "", errors.Wrap(err, "redis register")
		}
		if ok {
			break
		}
	}
	log.Debugf("[KEY] new run [%s] %s: %s", info.ID, target, key)
	return key, nil
}

func (r *Registry) Get(key string) (*RunInfo, error) {
	if r.local() {
		v, found := r.localCache.Get(key)
		if !found {
			return nil, fmt.Errorf("%s does not exists", key)
		}
		info := *v.(*RunInfo)
		return &info, nil
	}

	b, err := r.redisCli.Get(keyPrefix + key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%s does not exists", key)
	} else if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	info := &RunInfo{}
	if err := json.Unmarshal(b, info); err != nil {
		return nil, errors.Wrapf(err, "decode run %s", key)
	}
	return info, nil
}

func (r *Registry) put(key string, info *RunInfo, ttl time.Duration) error {
	if r.local() {
		if ttl == 0 {
			ttl = cache.NoExpiration
		}
		r.localCache.Set(key, info, ttl)
		return nil
	}
	b, _ := json.Marshal(info)
	return errors.Wrap(r.redisCli.Set(keyPrefix+key, b, ttl).Err(), "redis set")
}

// Update 는 진행 상황(프레임 수, 패킷 수)을 기록한다.
func (r *Registry) Update(key string, frames, packets uint64) error {
	info, err := r.Get(key)
	if err != nil {
		return err
	}
	info.Frames = frames
	info.Packets = packets
	info.Updated = time.Now()
	return r.put(key, info, 0)
}

// Finish 는 실행을 끝낸다. runErr 가 nil 이 아니면 실패로 남는다.
func (r *Registry) Finish(key string, runErr error) error {
	info, err := r.Get(key)
	if err != nil {
		return err
	}
	info.State = RunFinished
	if runErr != nil {
		info.State = RunFailed
		info.Error = runErr.Error()
	}
	info.Finished = time.Now()
	info.Updated = info.Finished
	return r.put(key, info, finishedTTL)
}

func (r *Registry) Delete(key string) bool {
	if r.local() {
		if _, ok := r.localCache.Get(key); ok {
			r.localCache.Delete(key)
			return true
		}
		return false
	}
	n, err := r.redisCli.Del(keyPrefix + key).Result()
	return err == nil && n > 0
}

func (r *Registry) Close() error {
	if r.local() {
		return nil
	}
	return r.redisCli.Close()
}
