package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
	log "github.com/sirupsen/logrus"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alepar/aranet4/aranet"
	"github.com/alepar/aranet4/aranet/aranet4"
)

// CLI args
var (
	listenAddr     = flag.String("listen-address", ":8080", "The address to listen on for HTTP requests.")
	readInterval   = flag.Duration("read-int", 60*time.Second, "time interval between sensor reads")
	scanDuration   = flag.Duration("scan-dur", 10*time.Second, "scan duration")
	connectTimeout = flag.Duration("connect-timeout", 15*time.Second, "timeout for connecting to the device")
	retries        = flag.Int("retries", 5, "max number of tries in case of BLE errors")
	address        = flag.String("address", "", "MAC address of the Aranet4 meter; empty means autodiscovery by name")

	overview     = flag.Bool("overview", false, "print a summary of device settings and current readings, then exit")
	historyOut   = flag.String("history-csv", "", "retrieve stored history and write it as CSV to this file ('-' for stdout), then exit")
	historyStart = flag.Int("history-start", 1, "first history slot to retrieve, 1-based inclusive")
	historyEnd   = flag.Int("history-end", 0xffff, "last history slot to retrieve, inclusive")
	sensorsArg   = flag.String("sensors", "thpc", "sensors to include in history: (t)emperature, (h)umidity, (p)ressure, (c)o2")

	postURL    = flag.String("post-url", "", "send current values to this URL as an HTTP POST, then exit")
	mqttBroker = flag.String("mqtt-broker", "", "also publish readings to this MQTT broker (e.g. tcp://host:1883)")
	mqttTopic  = flag.String("mqtt-topic", "aranet4/readings", "MQTT topic to publish readings to")
)

// metrics to expose to Prometheus
var (
	gaugeCo2         = newGauge("air_co2_level", "Air Carbon Dioxide level (units: ppm)")
	gaugeTemperature = newGauge("air_temperature", "Air Temperature (units: degrees Celsius)")
	gaugeAtmPressure = newGauge("air_atm_pressure", "Atmospheric Pressure (units: hPa)")
	gaugeHumidity    = newGauge("air_humidity", "Humidity (units: % of relative Humidity)")
	gaugeBattery     = newGauge("sensor_battery_level", "Battery charge remaining (units: %)")
)

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"serial_number"},
	)
}

func init() {
	prometheus.MustRegister(gaugeCo2)
	prometheus.MustRegister(gaugeTemperature)
	prometheus.MustRegister(gaugeAtmPressure)
	prometheus.MustRegister(gaugeHumidity)
	prometheus.MustRegister(gaugeBattery)

	// Add Go module build info.
	prometheus.MustRegister(prometheus.NewBuildInfoCollector())

	//logging
	formatter := &log.TextFormatter{
		FullTimestamp: true,
	}
	log.SetFormatter(formatter)
}

func main() {
	flag.Parse()

	d, err := linux.NewDevice()
	if err != nil {
		log.Fatalf("failed to open ble: %s", err)
	}
	ble.SetDefaultDevice(d)
	defer func() { _ = ble.Stop() }()

	addr := *address
	if addr == "" {
		var scanner aranet.Scanner = &aranet4.BleScanner{
			ScanDuration: *scanDuration,
			Retries:      *retries,
		}
		found, err := scanner.Scan()
		if err != nil {
			log.Fatalf("failed to discover an Aranet4: %s", err)
		}
		for a, name := range found {
			log.Printf("Found: %s at %s", name, a)
			addr = a
		}
	}

	dev, err := aranet4.Connect(addr, *connectTimeout)
	if err != nil {
		log.Fatalf("failed to connect to %s: %s", addr, err)
	}
	defer func() { _ = dev.Close() }()

	switch {
	case *overview:
		printOverview(dev)
	case *historyOut != "":
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := dumpHistoryCsv(ctx, dev, *historyOut); err != nil {
			log.Fatalf("failed to retrieve history: %s", err)
		}
	case *postURL != "":
		if err := postReadings(dev, *postURL); err != nil {
			log.Fatalf("failed to post readings: %s", err)
		}
	default:
		runExporter(dev)
	}
}

func runExporter(dev *aranet4.Device) {
	go func() {
		// Expose the registered metrics via HTTP.
		http.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				// Opt into OpenMetrics to support exemplars.
				EnableOpenMetrics: true,
			},
		))
		log.Panic(http.ListenAndServe(*listenAddr, nil))
	}()

	serialNr, err := dev.SerialNumber()
	if err != nil {
		log.Errorf("failed to read serial number, falling back to address: %s", err)
		serialNr = dev.Address()
	}

	var publish func(aranet.Readings)
	if *mqttBroker != "" {
		publisher, err := newMqttPublisher(*mqttBroker, *mqttTopic, serialNr)
		if err != nil {
			log.Fatalf("failed to connect to mqtt broker: %s", err)
		}
		publish = publisher
	}

	for {
		values, err := dev.Readings()
		if err != nil {
			log.Errorf("failed to read from sensor (serialNr %s): %s", serialNr, err)
		} else {
			valuesAsJson, err := json.Marshal(values)
			if err == nil {
				log.Printf("Received: %s", valuesAsJson)
			} else {
				log.Printf("Received: <marshall error: %s>", err)
			}

			gaugeCo2.WithLabelValues(serialNr).Set(values.CO2)
			gaugeTemperature.WithLabelValues(serialNr).Set(values.Temperature)
			gaugeAtmPressure.WithLabelValues(serialNr).Set(values.Pressure)
			gaugeHumidity.WithLabelValues(serialNr).Set(values.Humidity)
			gaugeBattery.WithLabelValues(serialNr).Set(float64(values.BatteryLevel))

			if publish != nil {
				publish(values)
			}
		}

		time.Sleep(*readInterval)
	}
}

func printOverview(dev *aranet4.Device) {
	name, err := dev.DeviceName()
	if err != nil {
		log.Fatalf("failed to read device identity: %s", err)
	}
	software, _ := dev.SoftwareRevision()
	stored, _ := dev.StoredReadings()

	values, err := dev.Readings()
	if err != nil {
		log.Fatalf("failed to read current values: %s", err)
	}

	fmt.Println("--------------------------------------")
	fmt.Printf("Connected: %s | %s\n", name, software)
	fmt.Printf("Updated %d s ago. Intervals: %d s\n", values.SinceLastUpdate, values.UpdateInterval)
	fmt.Printf("%d total readings\n", stored)
	fmt.Println("--------------------------------------")
	fmt.Printf("CO2:         %.0f ppm\n", values.CO2)
	fmt.Printf("Temperature: %.2f C\n", values.Temperature)
	fmt.Printf("Humidity:    %.0f %%\n", values.Humidity)
	fmt.Printf("Pressure:    %.2f hPa\n", values.Pressure)
	fmt.Printf("Battery:     %d %%\n", values.BatteryLevel)
	fmt.Println("--------------------------------------")
}

func dumpHistoryCsv(ctx context.Context, dev *aranet4.Device, path string) error {
	sensors := parseSensorsArg(*sensorsArg)

	history, err := dev.History(ctx, sensors, *historyStart, *historyEnd)
	if err != nil {
		return err
	}

	out := os.Stdout
	if path != "-" {
		out, err = os.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = out.Close() }()
	}

	writer := csv.NewWriter(out)
	header := []string{"index", "timestamp"}
	for _, sensor := range history.Sensors {
		header = append(header, sensor.String())
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	indexes := make([]int, 0, len(history.Timestamps))
	for index := range history.Timestamps {
		indexes = append(indexes, index)
	}
	sort.Ints(indexes)

	for _, index := range indexes {
		row := []string{
			strconv.Itoa(index),
			time.Unix(history.Timestamps[index], 0).Format("2006-01-02 15:04:05"),
		}
		for _, sensor := range history.Sensors {
			row = append(row, strconv.FormatFloat(history.Points[sensor][index], 'f', -1, 64))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func postReadings(dev *aranet4.Device, postTo string) error {
	values, err := dev.Readings()
	if err != nil {
		return err
	}

	resp, err := http.PostForm(postTo, url.Values{
		"time":        {strconv.FormatInt(time.Now().Unix()-int64(values.SinceLastUpdate), 10)},
		"co2":         {strconv.FormatFloat(values.CO2, 'f', -1, 64)},
		"temperature": {strconv.FormatFloat(values.Temperature, 'f', -1, 64)},
		"pressure":    {strconv.FormatFloat(values.Pressure, 'f', -1, 64)},
		"humidity":    {strconv.FormatFloat(values.Humidity, 'f', -1, 64)},
		"battery":     {strconv.Itoa(int(values.BatteryLevel))},
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	log.Printf("Posted current readings to %s: %s", postTo, resp.Status)
	return nil
}

func newMqttPublisher(broker string, topic string, serialNr string) (func(aranet.Readings), error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("aranet4-" + serialNr)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to mqtt broker %s", broker)
	}
	if token.Error() != nil {
		return nil, token.Error()
	}

	return func(values aranet.Readings) {
		payload, err := json.Marshal(struct {
			SerialNumber string  `json:"serial_number"`
			Time         int64   `json:"time"`
			CO2          float64 `json:"co2_ppm"`
			Temperature  float64 `json:"temperature_c"`
			Pressure     float64 `json:"pressure_hpa"`
			Humidity     float64 `json:"humidity_pct"`
			Battery      uint8   `json:"battery_pct"`
		}{
			SerialNumber: serialNr,
			Time:         time.Now().Unix() - int64(values.SinceLastUpdate),
			CO2:          values.CO2,
			Temperature:  values.Temperature,
			Pressure:     values.Pressure,
			Humidity:     values.Humidity,
			Battery:      values.BatteryLevel,
		})
		if err != nil {
			log.Errorf("failed to marshal mqtt payload: %s", err)
			return
		}
		pub := client.Publish(topic, 1, false, payload)
		if !pub.WaitTimeout(5 * time.Second) {
			log.Errorf("timed out publishing to %s", topic)
			return
		}
		if pub.Error() != nil {
			log.Errorf("failed to publish to %s: %s", topic, pub.Error())
		}
	}, nil
}

func parseSensorsArg(arg string) []aranet.Sensor {
	var sensors []aranet.Sensor
	for _, c := range arg {
		switch c {
		case 't':
			sensors = append(sensors, aranet.SensorTemperature)
		case 'h':
			sensors = append(sensors, aranet.SensorHumidity)
		case 'p':
			sensors = append(sensors, aranet.SensorPressure)
		case 'c':
			sensors = append(sensors, aranet.SensorCO2)
		}
	}
	return sensors
}
