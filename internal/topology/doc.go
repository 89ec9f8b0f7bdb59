// Package topology owns the sensor topology data model: devices, sensors,
// and the device-sensor mappings joining them.
//
// A Device is a physical unit (weather station, controller). A Sensor is a
// measurement kind, identified by its type ("temperature" exists once no
// matter how many devices can measure it). A Mapping is one measurement
// channel on one device, and is what readings are recorded against.
//
// Identity and integrity live in the schema: sensors.type is UNIQUE,
// device_sensors(device_id, sensor_id) is UNIQUE, and deletes cascade from
// device to mappings to readings. Registration paths go through the dedup
// engine so repeated registrations converge on the same rows.
package topology
