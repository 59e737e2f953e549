package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Overpayment policies accepted by the payment ledger.
const (
	OverpaymentReject = "reject"
	OverpaymentCredit = "credit"
)

// BillingPolicy is operator-tunable billing behavior. It lives in
// billing.yml so utilities can adjust terms without a redeploy.
type BillingPolicy struct {
	DueGracePeriodDays   int    `mapstructure:"dueGracePeriodDays"`
	OverpaymentPolicy    string `mapstructure:"overpaymentPolicy"`
	CustomerNumberPrefix string `mapstructure:"customerNumberPrefix"`
	MeterNumberPrefix    string `mapstructure:"meterNumberPrefix"`
	BillNumberPrefix     string `mapstructure:"billNumberPrefix"`
}

func DefaultBillingPolicy() BillingPolicy {
	return BillingPolicy{
		DueGracePeriodDays:   20,
		OverpaymentPolicy:    OverpaymentReject,
		CustomerNumberPrefix: "CUST",
		MeterNumberPrefix:    "MTR",
		BillNumberPrefix:     "BILL",
	}
}

type BillingPolicyHolder struct {
	current atomic.Value // holds BillingPolicy
}

func NewBillingPolicyHolder() (*BillingPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/tirtabill/config") // Volume-mounted config
	v.AddConfigPath("/etc/tirtabill")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("TIRTABILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingPolicy()
	v.SetDefault("billing.dueGracePeriodDays", defaults.DueGracePeriodDays)
	v.SetDefault("billing.overpaymentPolicy", defaults.OverpaymentPolicy)
	v.SetDefault("billing.customerNumberPrefix", defaults.CustomerNumberPrefix)
	v.SetDefault("billing.meterNumberPrefix", defaults.MeterNumberPrefix)
	v.SetDefault("billing.billNumberPrefix", defaults.BillNumberPrefix)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var policy BillingPolicy
	if err := v.UnmarshalKey("billing", &policy); err != nil {
		return nil, err
	}
	if err := validateBillingPolicy(policy); err != nil {
		return nil, err
	}

	holder := &BillingPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingPolicy
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-policy] reload failed: %v", err)
			return
		}
		if err := validateBillingPolicy(updated); err != nil {
			log.Printf("[billing-policy] invalid policy ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *BillingPolicyHolder) Get() BillingPolicy {
	return h.current.Load().(BillingPolicy)
}

// NewStaticBillingPolicyHolder bypasses the file watcher. Tests use it.
func NewStaticBillingPolicyHolder(policy BillingPolicy) *BillingPolicyHolder {
	holder := &BillingPolicyHolder{}
	holder.current.Store(policy)
	return holder
}

func validateBillingPolicy(policy BillingPolicy) error {
	if policy.DueGracePeriodDays <= 0 {
		return errors.New("billing.dueGracePeriodDays must be positive")
	}
	switch policy.OverpaymentPolicy {
	case OverpaymentReject, OverpaymentCredit:
	default:
		return errors.New("billing.overpaymentPolicy must be reject or credit")
	}
	if strings.TrimSpace(policy.BillNumberPrefix) == "" {
		return errors.New("billing.billNumberPrefix cannot be empty")
	}
	return nil
}
