package onboard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"regexp"
	"strings"

	carerrors "github.com/CodedInternet/carnode/onboard/errors"
	"github.com/CodedInternet/carnode/onboard/hardware"
	"github.com/CodedInternet/carnode/onboard/nvm"
)

const (
	CONFIG_HEADER  = "CarNode"
	CONFIG_VERSION = 1
	CONFIG_OFFSET  = 0
	NAME_LEN       = 16 // plus the terminating NUL in the record
	ADMINPASS_LEN  = 6
)

// configRecord is the on-storage layout, little endian, 38 bytes. Any change to it must bump
// CONFIG_VERSION.
type configRecord struct {
	Header          [8]byte
	Version         uint8
	Name            [NAME_LEN + 1]byte
	AdminPass       [ADMINPASS_LEN]byte
	SteeringTrim    int16
	ThrottleStartFw uint16
	ThrottleStartBw uint16
}

var CONFIG_RECORD_SIZE = binary.Size(configRecord{})

// Config is the identity and calibration data kept in non-volatile storage.
type Config struct {
	Name            string
	AdminPass       [ADMINPASS_LEN]byte
	SteeringTrim    int16
	ThrottleStartFw uint16
	ThrottleStartBw uint16
}

func (c Config) record() (r configRecord) {
	copy(r.Header[:], CONFIG_HEADER)
	r.Version = CONFIG_VERSION
	copy(r.Name[:NAME_LEN], c.Name)
	r.AdminPass = c.AdminPass
	r.SteeringTrim = c.SteeringTrim
	r.ThrottleStartFw = c.ThrottleStartFw
	r.ThrottleStartBw = c.ThrottleStartBw
	return
}

func (r configRecord) validate() error {
	var header [8]byte
	copy(header[:], CONFIG_HEADER)
	if r.Header != header {
		return carerrors.RecordError{Field: "header", Got: fmt.Sprintf("%q", r.Header[:]), Want: fmt.Sprintf("%q", header[:])}
	}
	if r.Version != CONFIG_VERSION {
		return carerrors.RecordError{Field: "version", Got: r.Version, Want: CONFIG_VERSION}
	}
	return nil
}

func (r configRecord) config() Config {
	name := r.Name[:NAME_LEN]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Config{
		Name:            string(name),
		AdminPass:       r.AdminPass,
		SteeringTrim:    r.SteeringTrim,
		ThrottleStartFw: r.ThrottleStartFw,
		ThrottleStartBw: r.ThrottleStartBw,
	}
}

// ConfigStore owns the in-memory Config and moves it to and from storage on request only.
type ConfigStore struct {
	config   Config
	storage  nvm.Storage
	identity hardware.Identity
	logger   *log.Logger
}

func NewConfigStore(storage nvm.Storage, identity hardware.Identity, logger *log.Logger) *ConfigStore {
	s := &ConfigStore{
		storage:  storage,
		identity: identity,
		logger:   logger,
	}
	s.UseDefault()
	return s
}

// Load reads and validates the persisted record. On any failure the defaults are applied, but
// not written back, and false is returned.
func (s *ConfigStore) Load() bool {
	buf := make([]byte, CONFIG_RECORD_SIZE)
	if _, err := s.storage.ReadAt(buf, CONFIG_OFFSET); err != nil {
		s.logger.Println(carerrors.StorageError{Op: "read", Err: err})
		s.UseDefault()
		return false
	}

	var r configRecord
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &r); err != nil {
		s.logger.Println(carerrors.StorageError{Op: "decode", Err: err})
		s.UseDefault()
		return false
	}
	if err := r.validate(); err != nil {
		s.logger.Printf("%v, using defaults", err)
		s.UseDefault()
		return false
	}

	s.config = r.config()
	return true
}

// Save writes the in-memory record verbatim and commits it.
func (s *ConfigStore) Save() error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, s.config.record()); err != nil {
		return carerrors.StorageError{Op: "encode", Err: err}
	}
	if _, err := s.storage.WriteAt(buf.Bytes(), CONFIG_OFFSET); err != nil {
		return carerrors.StorageError{Op: "write", Err: err}
	}
	if err := s.storage.Commit(); err != nil {
		return carerrors.StorageError{Op: "commit", Err: err}
	}
	return nil
}

// UseDefault resets to the factory config, naming the car after its hardware address.
func (s *ConfigStore) UseDefault() {
	s.config = Config{}
	s.setNameMAC()
}

func (s *ConfigStore) setNameMAC() {
	if s.identity == nil {
		s.config.Name = CONFIG_HEADER
		return
	}
	mac, err := s.identity.HardwareAddr()
	if err != nil || len(mac) < 3 {
		s.logger.Printf("unable to read hardware address: %v", err)
		s.config.Name = CONFIG_HEADER
		return
	}
	n := len(mac)
	s.config.Name = fmt.Sprintf("%s-%02X%02X%02X", CONFIG_HEADER, mac[n-3], mac[n-2], mac[n-1])
}

func (s *ConfigStore) Config() Config { return s.config }

// SetName stores up to NAME_LEN bytes of name.
func (s *ConfigStore) SetName(name string) {
	if len(name) > NAME_LEN {
		name = name[:NAME_LEN]
	}
	s.config.Name = strings.TrimRight(name, "\x00")
}

func (s *ConfigStore) SetAdminPass(pass [ADMINPASS_LEN]byte) { s.config.AdminPass = pass }
func (s *ConfigStore) SetSteeringTrim(v int16)               { s.config.SteeringTrim = v }

func (s *ConfigStore) SetThrottleStart(fw, bw uint16) {
	s.config.ThrottleStartFw = fw
	s.config.ThrottleStartBw = bw
}

func (s *ConfigStore) Name() string                   { return s.config.Name }
func (s *ConfigStore) AdminPass() [ADMINPASS_LEN]byte { return s.config.AdminPass }
func (s *ConfigStore) SteeringTrim() int16            { return s.config.SteeringTrim }
func (s *ConfigStore) ThrottleStart() (fw, bw uint16) {
	return s.config.ThrottleStartFw, s.config.ThrottleStartBw
}

var hostnameInvalid = regexp.MustCompile(`[^a-z0-9-]+`)

// Hostname is the name made safe for DNS.
func (s *ConfigStore) Hostname() string {
	h := hostnameInvalid.ReplaceAllString(strings.ToLower(s.config.Name), "-")
	h = strings.Trim(h, "-")
	if h == "" {
		return strings.ToLower(CONFIG_HEADER)
	}
	return h
}
