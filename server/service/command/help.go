package command

import "strings"

const helpTemplate = `{p}remindme <text> in <n> <unit>
    remind after a duration; units are minute, hour, day, week, month and year
{p}remindme <text> at <date> [time]
    remind at a date such as 19/10/26 or 19/10/26 3:00 pm; past dates move to the next day
{p}remindme <text> <hourly|daily|weekly|fortnightly|monthly|yearly|tomorrow>
    repeat on a fixed cadence ("tomorrow" fires once)
{p}rename <latest|number> <name>
    rename a reminder
{p}time <latest|number> in <n> <unit>
    move a reminder later by a duration
{p}time <latest|number> at <date> [time]
    move a reminder to a new date
{p}remove <all|latest|number>
    delete reminders
{p}list
    show your reminders
{p}help
    show this message

Separate several commands with ";", e.g. {p}remindme stretch hourly; list`

// Help returns the command reference for the given prefix.
func Help(prefix string) string {
	return strings.ReplaceAll(helpTemplate, "{p}", prefix)
}
