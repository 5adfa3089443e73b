package sid

import (
	"errors"
	"hash/fnv"
	"os"
	"time"

	"github.com/sony/sonyflake"
	"github.com/spf13/viper"
)

type Sid struct {
	sf *sonyflake.Sonyflake
}

// NewSid sid.machine_id 未配置时使用本机私有 IP 的低 16 位，没有私有 IP 时使用主机名的哈希
func NewSid(conf *viper.Viper) (*Sid, error) {
	settings := sonyflake.Settings{
		StartTime: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if conf.IsSet("sid.machine_id") {
		settings.MachineID = fixedMachineID(uint16(conf.GetUint32("sid.machine_id")))
	}
	sf := sonyflake.NewSonyflake(settings)
	if sf == nil && settings.MachineID == nil {
		settings.MachineID = hostnameMachineID
		sf = sonyflake.NewSonyflake(settings)
	}
	if sf == nil {
		return nil, errors.New("sonyflake not created")
	}
	return &Sid{sf}, nil
}

func fixedMachineID(id uint16) func() (uint16, error) {
	return func() (uint16, error) {
		return id, nil
	}
}

func hostnameMachineID() (uint16, error) {
	name, err := os.Hostname()
	if err != nil {
		return 0, err
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return uint16(h.Sum32()), nil
}

func (s Sid) GenUint64() (uint64, error) {
	return s.sf.NextID()
}

func (s Sid) GenInt64() (int64, error) {
	id, err := s.sf.NextID()
	if err != nil {
		return 0, err
	}
	return int64(id), nil
}
