package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"listing_wizard_v1/internal/form"
)

// Geocoder 逆地理编码：坐标 -> 地址
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodedAddress, error)
}

// GeocodedAddress 逆地理编码结果
type GeocodedAddress struct {
	Formatted string       `json:"formatted"`
	Address   form.Address `json:"address"`
}

type GeocoderConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// NominatimGeocoder 基于 Nominatim 协议的逆地理编码客户端
type NominatimGeocoder struct {
	client *resty.Client
}

// nominatimResponse /reverse 接口响应 (format=jsonv2)
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		County      string `json:"county"`
		Postcode    string `json:"postcode"`
		Country     string `json:"country"`
	} `json:"address"`
}

func NewNominatimGeocoder(cfg GeocoderConfig) *NominatimGeocoder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "listing-wizard/1.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "application/json")

	return &NominatimGeocoder{client: client}
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (*GeocodedAddress, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, fmt.Errorf("坐标超出范围: %f,%f", lat, lng)
	}

	var result nominatimResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"format": "jsonv2",
			"lat":    fmt.Sprintf("%f", lat),
			"lon":    fmt.Sprintf("%f", lng),
		}).
		SetResult(&result).
		Get("/reverse")
	if err != nil {
		return nil, fmt.Errorf("逆地理编码请求失败: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("逆地理编码失败: HTTP %d", resp.StatusCode())
	}
	if result.Error != "" {
		return nil, fmt.Errorf("逆地理编码失败: %s", result.Error)
	}

	a := result.Address
	city := firstNonEmpty(a.City, a.Town, a.Village)
	state := firstNonEmpty(a.State, a.County)
	street := strings.TrimSpace(strings.Join(nonEmpty(a.HouseNumber, a.Road), " "))

	formatted := result.DisplayName
	if formatted == "" {
		formatted = strings.Join(nonEmpty(street, city, a.Country), ", ")
	}

	return &GeocodedAddress{
		Formatted: formatted,
		Address: form.Address{
			StreetAddress: street,
			City:          city,
			State:         state,
			PostalCode:    a.Postcode,
			Country:       a.Country,
		},
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
